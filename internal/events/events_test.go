package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/orgscope/internal/models"
)

type fakeJetStream struct {
	mu   sync.Mutex
	msgs []*nats.Msg
	err  error
}

func (f *fakeJetStream) PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, m)
	return &nats.PubAck{Stream: DefaultStreamName, Sequence: uint64(len(f.msgs))}, nil
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.Dispatch(context.Background(),
		Event{Type: MemberAdded, OrganizationID: 1, UserID: 2, Role: models.RoleMember},
		Event{Type: InvitationSent, OrganizationID: 1},
	)

	require.Equal(t, []Type{MemberAdded, InvitationSent}, r.Types())
	added := r.OfType(MemberAdded)
	require.Len(t, added, 1)
	require.NotEqual(t, uuid.Nil, added[0].ID)
	require.False(t, added[0].OccurredAt.IsZero())

	r.Reset()
	require.Empty(t, r.Events())
}

func TestNATSPublisher(t *testing.T) {
	js := &fakeJetStream{}
	p := NewNATSPublisher(js, "")

	id := uuid.Must(uuid.NewV7())
	p.Dispatch(context.Background(), Event{
		ID:             id,
		Type:           MemberRoleChanged,
		OrganizationID: 42,
		UserID:         7,
		OldRole:        models.RoleMember,
		NewRole:        models.RoleAdministrator,
	})

	require.Len(t, js.msgs, 1)
	msg := js.msgs[0]
	require.Equal(t, "orgscope.organizations.42.member.role_changed", msg.Subject)
	require.Equal(t, id.String(), msg.Header.Get(nats.MsgIdHdr))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	require.Equal(t, "member", decoded["old_role"])
	require.Equal(t, "administrator", decoded["new_role"])
	require.NotContains(t, decoded, "token")
	require.NotContains(t, decoded, "changes")
}

func TestNATSPublisherSwallowsErrors(t *testing.T) {
	js := &fakeJetStream{err: errors.New("no responders")}
	p := NewNATSPublisher(js, "custom")

	require.NotPanics(t, func() {
		p.Dispatch(context.Background(), Event{Type: OrganizationCreated, OrganizationID: 1})
	})
	require.Equal(t, "custom.1.organization.created", p.Subject(Event{Type: OrganizationCreated, OrganizationID: 1}))
}

func TestAsyncDeliversAfterStop(t *testing.T) {
	rec := NewRecorder()
	a := NewAsync(rec, 10)
	require.NoError(t, a.Start())

	ctx, cancel := context.WithCancel(context.Background())
	a.Dispatch(ctx, Event{Type: OrganizationCreated, OrganizationID: 1}, Event{Type: MemberAdded, OrganizationID: 1})
	cancel()

	require.NoError(t, a.Stop())
	require.Equal(t, []Type{OrganizationCreated, MemberAdded}, rec.Types())

	// dispatching after stop drops instead of panicking
	a.Dispatch(context.Background(), Event{Type: OrganizationDeleted})
	require.Len(t, rec.Events(), 2)
	require.NoError(t, a.Stop())
}

type blockingDispatcher struct {
	release chan struct{}
	rec     *Recorder
}

func (b *blockingDispatcher) Dispatch(ctx context.Context, evts ...Event) {
	<-b.release
	b.rec.Dispatch(ctx, evts...)
}

func TestAsyncDropsWhenFull(t *testing.T) {
	b := &blockingDispatcher{release: make(chan struct{}), rec: NewRecorder()}
	a := NewAsync(b, 1)
	require.NoError(t, a.Start())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 10 {
			a.Dispatch(context.Background(), Event{Type: MemberAdded})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked")
	}

	close(b.release)
	require.NoError(t, a.Stop())
	require.Less(t, len(b.rec.Events()), 10)
	require.NotEmpty(t, b.rec.Events())
}

func TestFanout(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	Fanout{a, b, Nop{}}.Dispatch(context.Background(), Event{Type: OrganizationDeleted})
	require.Len(t, a.Events(), 1)
	require.Len(t, b.Events(), 1)
}
