// Package strategysim executes a strategy-generated order list as one
// atomic batch call on a fresh fork and classifies each order's fate from
// the receipt's event stream.
package strategysim

import (
	"perpsim/internal/domain"
	"perpsim/internal/events"
)

// MapOutcomes classifies each submitted order from the ordered event
// stream of one batch receipt.
//
// Orders execute sequentially within the batch, so their event groups
// never interleave: each order-request event starts the next group, fill
// events before the following request belong to the current group, and a
// placed event marks the group resting under its assigned id. A group with
// a placed event is RESTING even when matches preceded it (partial fill
// then rest); matches without a placed event mean FILLED; neither means
// the order failed inside the batch.
func MapOutcomes(stream []domain.DomainEvent, orders []domain.OrderDescriptor, priceDecimals int32) []domain.OrderOutcome {
	var outcomes []domain.OrderOutcome
	var current *domain.OrderOutcome

	flush := func() {
		if current == nil {
			return
		}
		current.VolumeWeightedFillPrice = domain.VolumeWeightedPrice(current.Matches, priceDecimals)
		outcomes = append(outcomes, *current)
		current = nil
	}

	for _, ev := range stream {
		switch ev.Name {
		case domain.EventOrderRequest:
			flush()
			next := domain.OrderOutcome{
				Index:  len(outcomes),
				Status: domain.StatusFailed,
			}
			if next.Index < len(orders) {
				o := orders[next.Index]
				next.OrderType = o.OrderType
				next.Price = o.Price
				next.LotSize = o.LotSize
			}
			current = &next

		case domain.EventOrderMatched:
			if current == nil {
				continue
			}
			current.Matches = append(current.Matches, domain.MatchRecord{
				MakerAccount: ev.Args["maker"],
				MakerOrderID: events.Uint64Arg(ev, "makerOrderId"),
				Price:        events.Int64Arg(ev, "price"),
				LotSize:      events.Int64Arg(ev, "lotSize"),
				Fee:          events.Int64Arg(ev, "fee"),
			})
			current.TotalFees += events.Int64Arg(ev, "fee")
			if current.Status != domain.StatusResting {
				current.Status = domain.StatusFilled
			}

		case domain.EventOrderPlaced:
			if current == nil {
				continue
			}
			id := events.Uint64Arg(ev, "orderId")
			current.RestingOrderID = &id
			current.Status = domain.StatusResting
		}
	}
	flush()
	return outcomes
}

// Aggregate summarizes a batch's outcomes.
func Aggregate(outcomes []domain.OrderOutcome) domain.BatchAggregates {
	agg := domain.BatchAggregates{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case domain.StatusFilled:
			agg.Filled++
		case domain.StatusResting:
			agg.Resting++
		case domain.StatusFailed:
			agg.Failed++
		}
		agg.FilledLots += o.FilledLots()
		agg.TotalFees += o.TotalFees
	}
	return agg
}
