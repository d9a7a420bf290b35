package registry_test

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// fakeLease grants lease 42 and counts keep-alives. Methods the registry
// does not use panic through the nil embedded interface.
type fakeLease struct {
	clientv3.Lease

	mu         sync.Mutex
	ttls       []int64
	keepAlives int
	kaErr      error
	grantErr   error
	revoked    []clientv3.LeaseID
}

func (l *fakeLease) Grant(_ context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.grantErr != nil {
		return nil, l.grantErr
	}
	l.ttls = append(l.ttls, ttl)
	return &clientv3.LeaseGrantResponse{ID: 42, TTL: ttl}, nil
}

func (l *fakeLease) KeepAliveOnce(_ context.Context, id clientv3.LeaseID) (*clientv3.LeaseKeepAliveResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keepAlives++
	if l.kaErr != nil {
		return nil, l.kaErr
	}
	return &clientv3.LeaseKeepAliveResponse{ID: id, TTL: 61}, nil
}

func (l *fakeLease) Revoke(_ context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked = append(l.revoked, id)
	return &clientv3.LeaseRevokeResponse{}, nil
}

func (l *fakeLease) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.keepAlives
}

func (l *fakeLease) failKeepAlive(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.kaErr = err
}

type putCall struct {
	key, value string
	opts       int
}

// fakeKV stores plain key/values and remembers the lease of every put.
type fakeKV struct {
	clientv3.KV

	mu     sync.Mutex
	data   map[string]string
	puts   []putCall
	putErr error
	getErr error
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string]string{}} }

func (kv *fakeKV) Put(_ context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.putErr != nil {
		return nil, kv.putErr
	}
	kv.data[key] = val
	kv.puts = append(kv.puts, putCall{key: key, value: val, opts: len(opts)})
	return &clientv3.PutResponse{}, nil
}

func (kv *fakeKV) Get(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.getErr != nil {
		return nil, kv.getErr
	}
	resp := &clientv3.GetResponse{}
	for k, v := range kv.data {
		if strings.HasPrefix(k, key) {
			resp.Kvs = append(resp.Kvs, &mvccpb.KeyValue{Key: []byte(k), Value: []byte(v)})
		}
	}
	return resp, nil
}

// fakeWatcher hands out a single channel the test feeds.
type fakeWatcher struct {
	clientv3.Watcher

	mu       sync.Mutex
	ch       chan clientv3.WatchResponse
	prefix   string
	progress error
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{ch: make(chan clientv3.WatchResponse, 8)}
}

func (w *fakeWatcher) Watch(_ context.Context, key string, _ ...clientv3.OpOption) clientv3.WatchChan {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prefix = key
	return w.ch
}

func (w *fakeWatcher) RequestProgress(context.Context) error { return w.progress }

func put(key, value string) clientv3.WatchResponse {
	return clientv3.WatchResponse{Events: []*clientv3.Event{{
		Type: mvccpb.PUT,
		Kv:   &mvccpb.KeyValue{Key: []byte(key), Value: []byte(value)},
	}}}
}

func del(key string) clientv3.WatchResponse {
	return clientv3.WatchResponse{Events: []*clientv3.Event{{
		Type: mvccpb.DELETE,
		Kv:   &mvccpb.KeyValue{Key: []byte(key)},
	}}}
}

var errEtcdDown = errors.New("etcdserver: leader changed")
