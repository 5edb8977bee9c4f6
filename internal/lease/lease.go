// Package lease keeps a per-job ownership key in Valkey while a generation
// job runs. The reaper leaves a job alone as long as its lease key exists.
package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	valkeylib "github.com/valkey-io/valkey-go"
)

const DefaultTTL = 2 * time.Minute

const renewScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

func Key(jobID uuid.UUID) string {
	return "postplanner:generation:lease:" + jobID.String()
}

type Manager struct {
	client valkeylib.Client
	holder string
	ttl    time.Duration
}

// Connect opens a Valkey client and checks it with a PING.
func Connect(ctx context.Context, addr, password string, db int) (valkeylib.Client, error) {
	opts := valkeylib.ClientOption{
		InitAddress: []string{addr},
		SelectDB:    db,
	}
	if password != "" {
		opts.Password = password
	}
	client, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}
	return client, nil
}

// NewManager returns a lease manager owned by holder, typically one id per process.
func NewManager(client valkeylib.Client, holder string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if holder == "" {
		holder = uuid.NewString()
	}
	return &Manager{client: client, holder: holder, ttl: ttl}
}

func (m *Manager) Holder() string { return m.holder }

// Acquire sets the lease only if nobody holds it.
func (m *Manager) Acquire(ctx context.Context, jobID uuid.UUID) (bool, error) {
	cmd := m.client.B().Set().
		Key(Key(jobID)).
		Value(m.holder).
		Nx().
		PxMilliseconds(m.ttl.Milliseconds()).
		Build()
	err := m.client.Do(ctx, cmd).Error()
	if err == nil {
		return true, nil
	}
	if valkeylib.IsValkeyNil(err) {
		return false, nil
	}
	return false, fmt.Errorf("acquire lease %s: %w", jobID, err)
}

// Renew extends the lease if this holder still owns it.
func (m *Manager) Renew(ctx context.Context, jobID uuid.UUID) (bool, error) {
	cmd := m.client.B().Eval().
		Script(renewScript).
		Numkeys(1).
		Key(Key(jobID)).
		Arg(m.holder, fmt.Sprint(m.ttl.Milliseconds())).
		Build()
	n, err := m.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return false, fmt.Errorf("renew lease %s: %w", jobID, err)
	}
	return n == 1, nil
}

func (m *Manager) Release(ctx context.Context, jobID uuid.UUID) error {
	cmd := m.client.B().Eval().
		Script(releaseScript).
		Numkeys(1).
		Key(Key(jobID)).
		Arg(m.holder).
		Build()
	if err := m.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("release lease %s: %w", jobID, err)
	}
	return nil
}

// Held reports whether any process holds the lease.
func (m *Manager) Held(ctx context.Context, jobID uuid.UUID) (bool, error) {
	n, err := m.client.Do(ctx, m.client.B().Exists().Key(Key(jobID)).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("check lease %s: %w", jobID, err)
	}
	return n > 0, nil
}

func (m *Manager) Close() {
	if m.client != nil {
		m.client.Close()
		logrus.Info("[LEASE] valkey connection closed")
	}
}
