package presentation

import (
	"context"
	"fmt"
	"time"

	"noisevpn/infrastructure/telemetry/trafficstats"
)

// startTrafficStats installs a global byte counter for the engine's UDP
// loop to report into and logs a human-readable rate/total line every
// reportInterval until ctx is cancelled.
func startTrafficStats(ctx context.Context, reportInterval time.Duration) {
	collector := trafficstats.NewCollector(time.Second, 0.3)
	trafficstats.SetGlobal(collector)
	go collector.Start(ctx)

	go func() {
		ticker := time.NewTicker(reportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := collector.Snapshot()
				fmt.Printf("traffic: rx %s (%s/s) tx %s (%s/s)\n",
					trafficstats.FormatTotal(snap.RXBytesTotal), trafficstats.FormatRate(snap.RXRate),
					trafficstats.FormatTotal(snap.TXBytesTotal), trafficstats.FormatRate(snap.TXRate))
			}
		}
	}()
}
