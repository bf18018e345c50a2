package watcher

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

func newPod(namespace, name, ip string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			UID:       types.UID(namespace + "-" + name),
		},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			PodIP: ip,
		},
	}
}

func newService(t *testing.T, client *fake.Clientset) *Service {
	t.Helper()
	svc, err := New(Config{Client: client, ResyncDelay: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	return svc
}

func waitForCount(t *testing.T, svc *Service, want int) {
	t.Helper()
	err := wait.PollUntilContextTimeout(context.Background(), 10*time.Millisecond, 3*time.Second, true,
		func(ctx context.Context) (bool, error) {
			return svc.Count() == want, nil
		})
	if err != nil {
		t.Fatalf("Store never reached %d entries, have %d", want, svc.Count())
	}
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("Expected an error when no client is given")
	}
}

func TestSnapshotPopulatesStore(t *testing.T) {
	client := fake.NewSimpleClientset(
		newPod("default", "a", "10.0.0.1"),
		newPod("kube-system", "b", "10.0.0.2"),
		newPod("default", "pending", ""), // no IP, must be skipped
	)
	svc := newService(t, client)

	if err := svc.snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if svc.Count() != 2 {
		t.Errorf("Expected 2 entries, got %d", svc.Count())
	}
	if _, ok := svc.ByIP("10.0.0.1"); !ok {
		t.Error("Expected an entry for 10.0.0.1")
	}
	if rec, ok := svc.ByIP(""); ok {
		t.Errorf("Pod without an IP must not be indexed, found %+v", rec)
	}
}

func TestSnapshotIsIdempotent(t *testing.T) {
	client := fake.NewSimpleClientset(
		newPod("default", "a", "10.0.0.1"),
		newPod("default", "b", "10.0.0.2"),
	)
	svc := newService(t, client)

	if err := svc.snapshot(context.Background()); err != nil {
		t.Fatalf("First snapshot failed: %v", err)
	}
	before := svc.All("")

	if err := svc.snapshot(context.Background()); err != nil {
		t.Fatalf("Second snapshot failed: %v", err)
	}
	after := svc.All("")

	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("Snapshot is not idempotent (-before +after):\n%s", diff)
	}
}

func TestEndToEndScenario(t *testing.T) {
	podA := newPod("default", "a", "10.0.0.1")
	podB := newPod("kube-system", "b", "10.0.0.2")

	client := fake.NewSimpleClientset(podA, podB)
	fakeWatch := watch.NewFake()
	client.PrependWatchReactor("pods", k8stesting.DefaultWatchReactor(fakeWatch, nil))

	svc := newService(t, client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	waitForCount(t, svc, 2)

	inDefault := svc.All("default")
	if len(inDefault) != 1 {
		t.Fatalf("Expected 1 pod in default, got %d", len(inDefault))
	}
	if rec := inDefault["10.0.0.1"]; rec == nil || rec.Name != "a" {
		t.Errorf("Expected pod a under 10.0.0.1, got %+v", rec)
	}

	rec, ok := svc.ByIP("10.0.0.2")
	if !ok {
		t.Fatal("Expected an entry for 10.0.0.2")
	}
	if rec.Name != "b" || rec.Namespace != "kube-system" {
		t.Errorf("Expected kube-system/b, got %s", rec.Key())
	}

	fakeWatch.Delete(podA)
	waitForCount(t, svc, 1)

	if _, ok := svc.ByIP("10.0.0.1"); ok {
		t.Error("Expected 10.0.0.1 to be absent after the delete event")
	}
}

func TestEventsApplyInOrder(t *testing.T) {
	client := fake.NewSimpleClientset()
	fakeWatch := watch.NewFake()
	client.PrependWatchReactor("pods", k8stesting.DefaultWatchReactor(fakeWatch, nil))

	svc := newService(t, client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	fakeWatch.Add(newPod("default", "a", "10.0.0.1"))
	waitForCount(t, svc, 1)

	// A later Modified event for the same IP supersedes the Added one.
	modified := newPod("default", "a", "10.0.0.1")
	modified.Status.Phase = corev1.PodSucceeded
	fakeWatch.Modify(modified)

	err := wait.PollUntilContextTimeout(context.Background(), 10*time.Millisecond, 3*time.Second, true,
		func(ctx context.Context) (bool, error) {
			rec, ok := svc.ByIP("10.0.0.1")
			return ok && rec.Phase == corev1.PodSucceeded, nil
		})
	if err != nil {
		t.Fatal("Modified event was never applied over the Added one")
	}

	// Events without an IP carry nothing to index and are skipped.
	fakeWatch.Add(newPod("default", "pending", ""))

	fakeWatch.Add(newPod("default", "c", "10.0.0.2"))
	waitForCount(t, svc, 2)

	all := svc.All("")
	if _, ok := all["10.0.0.1"]; !ok {
		t.Error("Expected 10.0.0.1 to still be tracked")
	}
	if _, ok := all["10.0.0.2"]; !ok {
		t.Error("Expected 10.0.0.2 to be tracked")
	}

	// Deleting an IP that was never tracked is a no-op.
	fakeWatch.Delete(newPod("default", "ghost", "10.0.0.99"))
	fakeWatch.Delete(newPod("default", "c", "10.0.0.2"))
	waitForCount(t, svc, 1)
}

func TestResyncAfterStreamClose(t *testing.T) {
	client := fake.NewSimpleClientset(newPod("default", "a", "10.0.0.1"))

	watchers := make(chan *watch.FakeWatcher, 10)
	client.PrependWatchReactor("pods", func(action k8stesting.Action) (bool, watch.Interface, error) {
		w := watch.NewFake()
		watchers <- w
		return true, w, nil
	})

	svc := newService(t, client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	first := <-watchers
	waitForCount(t, svc, 1)

	// A pod appears while the stream is down; the next snapshot picks it up.
	if err := client.Tracker().Add(newPod("default", "b", "10.0.0.2")); err != nil {
		t.Fatalf("Failed to add pod to tracker: %v", err)
	}
	first.Stop()

	waitForCount(t, svc, 2)

	if _, ok := svc.ByIP("10.0.0.2"); !ok {
		t.Error("Expected 10.0.0.2 after the resync snapshot")
	}
	if _, ok := svc.ByIP("10.0.0.1"); !ok {
		t.Error("Expected 10.0.0.1 to survive the resync")
	}
}

func TestSnapshotFailureLeavesStoreUntouchedThenRecovers(t *testing.T) {
	client := fake.NewSimpleClientset(newPod("default", "a", "10.0.0.1"))

	var listCalls int32
	client.PrependReactor("list", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		if atomic.AddInt32(&listCalls, 1) == 1 {
			return true, nil, fmt.Errorf("apiserver unavailable")
		}
		return false, nil, nil
	})

	svc := newService(t, client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	// First cycle fails its snapshot; the store stays empty until the
	// backoff elapses and the second cycle lists successfully.
	waitForCount(t, svc, 1)

	if atomic.LoadInt32(&listCalls) < 2 {
		t.Errorf("Expected at least 2 list attempts, got %d", listCalls)
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	client := fake.NewSimpleClientset(newPod("default", "a", "10.0.0.1"))
	fakeWatch := watch.NewFake()
	client.PrependWatchReactor("pods", k8stesting.DefaultWatchReactor(fakeWatch, nil))

	svc := newService(t, client)
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)

	waitForCount(t, svc, 1)
	cancel()

	// After cancellation the loop must stop draining the stream: a send on
	// the fake watcher would block forever, so probe with a timeout.
	err := wait.PollUntilContextTimeout(context.Background(), 10*time.Millisecond, 3*time.Second, true,
		func(ctx context.Context) (bool, error) {
			return fakeWatch.IsStopped(), nil
		})
	if err != nil {
		t.Error("Expected the watch to be stopped after context cancellation")
	}
}
