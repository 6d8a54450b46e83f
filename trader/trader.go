package trader

import "context"

type Trader interface {
	// Init allocates external resources: logger, database, gateway.
	Init(ctx context.Context) error
	// Print shows the configured ladder without trading.
	Print(ctx context.Context) error
	// Start runs the tick loop until the context is cancelled or Stop is called.
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Clear cancels resting orders and removes persisted state.
	Clear(ctx context.Context, dryRun bool) error
	// Close releases resources allocated by Init.
	Close(ctx context.Context)
}
