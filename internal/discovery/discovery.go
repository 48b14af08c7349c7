// Package discovery announces the server on the local network over mDNS.
package discovery

import (
	"context"
	"fmt"
	"os"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog"
)

// Announce registers serviceName on port until ctx is done.
func Announce(ctx context.Context, serviceName string, port int, log zerolog.Logger) error {
	host, _ := os.Hostname()
	server, err := zeroconf.Register(
		fmt.Sprintf("%s-%s", "Waypoints", host),
		serviceName,
		"local.",
		port,
		[]string{"txtv=0", "proto=ws", "path=/ws"},
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	log.Info().Str("service", serviceName).Int("port", port).Msg("mDNS service registered")

	<-ctx.Done()
	server.Shutdown()
	return nil
}
