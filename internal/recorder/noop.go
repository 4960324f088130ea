package recorder

import "context"

// NoopRecorder is used when no database is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordTrade(context.Context, *TradeEvent) error         { return nil }
func (n *NoopRecorder) RecordPayout(context.Context, *PayoutEvent) error       { return nil }
func (n *NoopRecorder) RecordReplenish(context.Context, *ReplenishEvent) error { return nil }
func (n *NoopRecorder) RecordProtocol(context.Context, *ProtocolEvent) error   { return nil }
func (n *NoopRecorder) Close() error                                           { return nil }
