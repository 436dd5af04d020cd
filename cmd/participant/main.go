// Command participant runs a standalone DDS domain participant: it joins a
// domain, runs the Discovery Engine and Participant Event Loop, and exits on
// SIGINT/SIGTERM. It carries no application-level publishers or subscribers
// of its own — it exists to prove out discovery and the wire protocol
// end-to-end, the way the teacher's main.go boots a bare relay.
package main

import (
	"context"
	"net"
	"os"

	"github.com/pkg/profile"
	"lol.mleku.dev/log"

	"github.com/opendds-go/ddscore/pkg/config"
	"github.com/opendds-go/ddscore/pkg/discovery"
	"github.com/opendds-go/ddscore/pkg/eventloop"
	"github.com/opendds-go/ddscore/pkg/guid"
	"github.com/opendds-go/ddscore/pkg/localfanout"
	"github.com/opendds-go/ddscore/pkg/topiccache"
	"github.com/opendds-go/ddscore/pkg/transport"
	"github.com/opendds-go/ddscore/pkg/utils/interrupt"
	"github.com/opendds-go/ddscore/pkg/wire"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.E.F("config: %v", err)
		os.Exit(1)
	}

	if cfg.Pprof != "" {
		startProfiler(cfg.Pprof)
	}

	prefix := guid.NewPrefix()
	ports := transport.ComputePorts(cfg.DomainID, cfg.ParticipantID)

	spdpSock, err := transport.NewMulticastSocket(prefix, net.ParseIP(transport.DefaultSPDPMulticastGroup), ports.SPDPMulticast)
	if err != nil {
		log.E.F("transport: spdp multicast socket: %v", err)
		os.Exit(1)
	}
	sedpSock, err := transport.NewUnicastSocket(prefix, ports.SPDPUnicast)
	if err != nil {
		log.E.F("transport: sedp unicast socket: %v", err)
		os.Exit(1)
	}
	userSock, err := transport.NewUnicastSocket(prefix, ports.UserUnicast)
	if err != nil {
		log.E.F("transport: user unicast socket: %v", err)
		os.Exit(1)
	}

	tc := topiccache.New()
	fanout := localfanout.New()
	db := discovery.NewDB()

	self := discovery.ParticipantData{
		Prefix:             prefix,
		MetatrafficUnicast: []wire.Locator{sedpSock.Locator()},
		DefaultUnicast:     []wire.Locator{userSock.Locator()},
	}

	// Any bound UDP socket can write to any destination address regardless
	// of which local port it listens on, so the built-in endpoints share
	// the discovery unicast socket for sending; each socket still runs its
	// own receive loop below.
	engine := discovery.New(self, sedpSock, tc, fanout, db)

	loop := eventloop.New(cfg.HeartbeatTickDuration(eventloop.DefaultHeartbeatTick), spdpSock, sedpSock, userSock)
	loop.AddDirectory(engine)
	loop.AddHeartbeatSource(engine)

	ctx, cancel := context.WithCancel(context.Background())
	interrupt.AddHandler(
		func() {
			log.I.F("participant: shutting down")
			cancel()
		},
	)

	log.I.F("participant: %s joining domain %d (spdp=%d sedp=%d user=%d)", prefix, cfg.DomainID, ports.SPDPMulticast, ports.SPDPUnicast, ports.UserUnicast)

	go engine.Run(ctx)
	loop.Run(ctx)
}

func startProfiler(mode string) {
	switch mode {
	case "cpu":
		prof := profile.Start(profile.CPUProfile)
		interrupt.AddHandler(prof.Stop)
	case "memory":
		prof := profile.Start(profile.MemProfile)
		interrupt.AddHandler(prof.Stop)
	case "allocation":
		prof := profile.Start(profile.MemProfileAllocs)
		interrupt.AddHandler(prof.Stop)
	}
}
