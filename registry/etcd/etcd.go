package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-upf/upf/errors"
	"github.com/go-upf/upf/manifest"
	"github.com/go-upf/upf/pkg/retry"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Backend persists manifests under /<ns>/manifests/<id> as durable keys
// and announces the registry instance itself under /<ns>/instances/<id>
// on a kept-alive lease, so peers can tell a live registry from a stale
// key after a crash.
type Backend struct {
	client *clientv3.Client
	lease  clientv3.Lease
	opt    *option
}

func New(cfg clientv3.Config, opts ...Option) (*Backend, error) {
	opt := &option{
		ctx:   context.Background(),
		ns:    "upf",
		ttl:   10,
		retry: 5,
	}
	for _, o := range opts {
		o(opt)
	}

	client, err := clientv3.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Backend{
		client: client,
		opt:    opt,
	}, nil
}

func (b *Backend) manifestKey(id string) string {
	return fmt.Sprintf("/%s/manifests/%s", b.opt.ns, id)
}

func (b *Backend) Save(ctx context.Context, entry manifest.Entry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = b.client.Put(ctx, b.manifestKey(entry.Manifest.ID), string(value))
	return err
}

func (b *Backend) Delete(ctx context.Context, id string) error {
	_, err := b.client.Delete(ctx, b.manifestKey(id))
	return err
}

func (b *Backend) Load(ctx context.Context) ([]manifest.Entry, error) {
	prefix := fmt.Sprintf("/%s/manifests/", b.opt.ns)
	rsp, err := b.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	entries := make([]manifest.Entry, 0, len(rsp.Kvs))
	for _, kv := range rsp.Kvs {
		var entry manifest.Entry
		if err = json.Unmarshal(kv.Value, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Announce publishes this registry instance on a leased key and keeps the
// lease alive until the backend context ends.
func (b *Backend) Announce(ctx context.Context, instanceID, addr string) error {
	key := fmt.Sprintf("/%s/instances/%s", b.opt.ns, instanceID)
	if b.lease != nil {
		// release lease resource
		_ = b.lease.Close()
	}
	b.lease = clientv3.NewLease(b.client)
	leaseID, err := b.put(ctx, key, addr)
	if err != nil {
		return err
	}
	go b.keepAlive(b.opt.ctx, leaseID, key, addr)
	return nil
}

func (b *Backend) put(ctx context.Context, key, value string) (clientv3.LeaseID, error) {
	grant, err := b.lease.Grant(ctx, int64(time.Duration(b.opt.ttl)*time.Second))
	if err != nil {
		return 0, err
	}
	_, err = b.client.Put(ctx, key, value, clientv3.WithLease(grant.ID))
	if err != nil {
		return 0, err
	}
	return grant.ID, nil
}

func (b *Backend) keepAlive(ctx context.Context, leaseID clientv3.LeaseID, key, value string) {
	ch, err := b.client.KeepAlive(ctx, leaseID)
	if err != nil {
		leaseID = 0
	}

	for {
		if leaseID == 0 {
			err = retry.NewOption(
				retry.Retry(b.opt.retry), retry.Delay(500*time.Millisecond), retry.MaxJitter(500*time.Millisecond)).Retry(func() error {
				e := ctx.Err()
				if e != nil {
					return e
				}

				// non-blocking
				ic := make(chan clientv3.LeaseID, 1)
				ec := make(chan error, 1)
				cx, cancel := context.WithTimeout(ctx, 3*time.Second)
				go func() {
					defer cancel()
					id, pe := b.put(cx, key, value)
					if pe != nil {
						ec <- pe
					} else {
						ic <- id
					}
				}()

				select {
				case <-cx.Done():
					return errors.InternalServer("time out", "TIME_OUT")
				case e = <-ec:
					return e
				case leaseID = <-ic:
				}

				ch, err = b.client.KeepAlive(ctx, leaseID)
				return err
			})
			if err != nil {
				return
			}

			if _, ok := <-ch; !ok {
				return
			}
		}

		select {
		case _, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				// retry
				leaseID = 0
				continue
			}
		case <-ctx.Done():
			return
		}
	}
}

func (b *Backend) Close() error {
	if b.lease != nil {
		_ = b.lease.Close()
	}
	return b.client.Close()
}
