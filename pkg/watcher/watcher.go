package watcher

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"

	"github.com/raycarroll/pod-ip-watcher/pkg/cache"
	"github.com/raycarroll/pod-ip-watcher/pkg/logger"
	"github.com/raycarroll/pod-ip-watcher/pkg/models"
)

// DefaultResyncDelay is how long the watcher waits before re-listing after
// the watch stream ends or errors.
const DefaultResyncDelay = 5 * time.Second

// Service keeps an IP -> pod record index converged with the cluster. It
// owns the cache store and the single reconciliation goroutine that writes
// to it; query callers read through ByIP, All and Count.
type Service struct {
	client      kubernetes.Interface
	store       *cache.Store
	resyncDelay time.Duration
	log         *logger.PrefixLogger
}

// Config holds watcher configuration.
type Config struct {
	Client      kubernetes.Interface
	ResyncDelay time.Duration // defaults to DefaultResyncDelay
}

// New creates a watcher service with an empty store.
func New(cfg Config) (*Service, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("kubernetes client is required")
	}
	if cfg.ResyncDelay == 0 {
		cfg.ResyncDelay = DefaultResyncDelay
	}

	return &Service{
		client:      cfg.Client,
		store:       cache.NewStore(),
		resyncDelay: cfg.ResyncDelay,
		log:         logger.WithPrefix("watcher: "),
	}, nil
}

// Start launches the reconciliation loop in its own goroutine and returns
// immediately. The loop runs until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	go s.run(ctx)
}

// ByIP returns the record for the pod currently holding ip.
func (s *Service) ByIP(ip string) (*models.PodRecord, bool) {
	return s.store.Get(ip)
}

// All returns a snapshot of all tracked records, keyed by IP, optionally
// restricted to one namespace (empty string means all namespaces).
func (s *Service) All(namespace string) map[string]*models.PodRecord {
	return s.store.List(namespace)
}

// Count returns the number of tracked pod IPs.
func (s *Service) Count() int {
	return s.store.Count()
}

// run cycles snapshot -> watch -> backoff forever. Each cycle re-lists the
// cluster and re-upserts every record, so a cycle is idempotent with
// respect to store content.
func (s *Service) run(ctx context.Context) {
	s.log.Info("Starting pod watcher...")

	for {
		if err := s.resync(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("Error in pod watcher: %v", err)
		}

		if ctx.Err() != nil {
			s.log.Info("Pod watcher stopped")
			return
		}

		s.log.Info("Restarting watch stream in %s...", s.resyncDelay)
		select {
		case <-ctx.Done():
			s.log.Info("Pod watcher stopped")
			return
		case <-time.After(s.resyncDelay):
		}
	}
}

// resync performs one full cycle: list all pods, then consume the watch
// stream until it ends or errors. A failed list skips the watch phase and
// leaves the store at whatever state it already had.
func (s *Service) resync(ctx context.Context) error {
	metricResyncs.Inc()

	if err := s.snapshot(ctx); err != nil {
		return fmt.Errorf("initial pod listing: %w", err)
	}
	return s.consume(ctx)
}

// snapshot lists all pods cluster-wide and upserts a record for each one
// that reports an IP.
func (s *Service) snapshot(ctx context.Context) error {
	podList, err := s.client.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return err
	}

	for i := range podList.Items {
		if rec, ok := models.RecordFromPod(&podList.Items[i]); ok {
			s.store.Upsert(rec.PodIP, rec)
		}
	}

	metricPodsTracked.Set(float64(s.store.Count()))
	s.log.Info("Pod map populated with %d pods", s.store.Count())
	return nil
}

// consume opens a cluster-wide watch and applies events until the stream
// closes, errors, or ctx is cancelled.
func (s *Service) consume(ctx context.Context) error {
	w, err := s.client.CoreV1().Pods(metav1.NamespaceAll).Watch(ctx, metav1.ListOptions{})
	if err != nil {
		return fmt.Errorf("opening watch stream: %w", err)
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.ResultChan():
			if !ok {
				return fmt.Errorf("watch stream closed")
			}
			if event.Type == watch.Error {
				return fmt.Errorf("watch stream error: %w", apierrors.FromObject(event.Object))
			}
			s.apply(event)
		}
	}
}

// apply folds a single watch event into the store. Events for pods without
// an IP are skipped; they carry nothing the index could key on.
func (s *Service) apply(event watch.Event) {
	pod, ok := event.Object.(*corev1.Pod)
	if !ok {
		s.log.Warn("Skipping event with unexpected object type %T", event.Object)
		return
	}

	rec, ok := models.RecordFromPod(pod)
	if !ok {
		return
	}

	s.log.Debug("Event: %s for pod %s", event.Type, rec.Key())

	switch event.Type {
	case watch.Added, watch.Modified:
		s.store.Upsert(rec.PodIP, rec)
		s.log.Info("Updated pod map for IP %s: %s", rec.PodIP, rec.Key())
	case watch.Deleted:
		s.store.Remove(rec.PodIP)
		s.log.Info("Removed pod from map: IP %s", rec.PodIP)
	default:
		return
	}

	metricEvents.WithLabelValues(string(event.Type)).Inc()
	metricPodsTracked.Set(float64(s.store.Count()))
}
