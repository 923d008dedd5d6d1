// Package notify delivers pushes to an account's best connection.
package notify

import (
	"github.com/sirupsen/logrus"

	"github.com/playhub/lobby/internal/packets"
	"github.com/playhub/lobby/internal/registry"
)

// Delivery records where a push ended up.
type Delivery int

const (
	Dropped Delivery = iota
	DeliveredMonitor
	DeliveredPrimary
)

func (d Delivery) String() string {
	switch d {
	case DeliveredMonitor:
		return "monitor"
	case DeliveredPrimary:
		return "primary"
	}
	return "dropped"
}

// Resolver looks up the connections bound to an account.
type Resolver interface {
	Resolve(account string) registry.Binding
}

// Router never blocks: a push goes to the monitor connection if there is one,
// otherwise the primary, otherwise nowhere. Dropped pushes are not retried;
// clients resynchronize with room_state after reconnecting.
type Router struct {
	resolver Resolver
	logger   *logrus.Logger
}

func NewRouter(resolver Resolver, logger *logrus.Logger) *Router {
	return &Router{resolver: resolver, logger: logger}
}

// Push delivers push to account.
func (r *Router) Push(account string, push *packets.Push) Delivery {
	b := r.resolver.Resolve(account)

	var delivery Delivery
	switch {
	case b.Monitor != nil:
		if b.Monitor.TrySend(push) {
			delivery = DeliveredMonitor
		}
	case b.Primary != nil:
		if b.Primary.TrySend(push) {
			delivery = DeliveredPrimary
		}
	}

	log := r.logger.WithFields(logrus.Fields{"account": account, "action": push.Action})
	if delivery == Dropped {
		log.Warn("dropped push")
	} else {
		log.Debugf("delivered push to %s connection", delivery)
	}
	return delivery
}

// PushAll delivers push to every account except skip.
func (r *Router) PushAll(accounts []string, skip string, push *packets.Push) {
	for _, account := range accounts {
		if account != skip {
			r.Push(account, push)
		}
	}
}
