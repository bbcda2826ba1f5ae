package identity

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Metrics tracks resolution outcomes
type Metrics struct {
	Total          int       `json:"total"`
	Exact          int       `json:"exact"`
	Fuzzy          int       `json:"fuzzy"`
	Unresolved     int       `json:"unresolved"`
	Ambiguous      int       `json:"ambiguous"`
	LastResolution time.Time `json:"last_resolution"`
}

// Resolver resolves names against one knowledge base snapshot and keeps an
// audit trail of what it did.
type Resolver struct {
	kb  *KnowledgeBase
	log *logrus.Entry

	mu      sync.Mutex
	metrics Metrics
}

// NewResolver creates a resolver over kb
func NewResolver(kb *KnowledgeBase) *Resolver {
	if kb == nil {
		kb = NewKnowledgeBase(nil)
	}
	return &Resolver{
		kb:  kb,
		log: logrus.WithField("component", "identity"),
	}
}

// Resolve runs Resolve and records the outcome.
func (r *Resolver) Resolve(nameRaw string, isPitcherGuess bool) Resolution {
	res := Resolve(r.kb, nameRaw, isPitcherGuess)

	r.mu.Lock()
	r.metrics.Total++
	r.metrics.LastResolution = time.Now()
	switch {
	case res.Status == StatusResolved && res.Method == MethodExact:
		r.metrics.Exact++
	case res.Status == StatusResolved:
		r.metrics.Fuzzy++
	case res.Status == StatusAmbiguous:
		r.metrics.Ambiguous++
	default:
		r.metrics.Unresolved++
	}
	r.mu.Unlock()

	fields := logrus.Fields{"name": nameRaw, "pitcher": isPitcherGuess}
	switch res.Status {
	case StatusResolved:
		if res.Method == MethodFuzzy {
			r.log.WithFields(fields).WithField("external_id", res.Identity.ExternalID).Info(res.Note)
		}
	case StatusAmbiguous:
		ids := make([]string, len(res.Candidates))
		for i, c := range res.Candidates {
			ids[i] = c.ExternalID
		}
		r.log.WithFields(fields).WithField("candidates", ids).Warnf("⚠️  %s", res.Note)
	default:
		r.log.WithFields(fields).Debug(res.Note)
	}
	return res
}

// GetMetrics returns a copy of the current counters
func (r *Resolver) GetMetrics() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}
