package usecase

import (
	"context"
	"log"
	"sync"

	"chatcore/internal/domain/entity"
	"chatcore/pkg/errors"
)

type CallState string

const (
	CallStateIdle            CallState = "idle"
	CallStatePendingOutgoing CallState = "pending_outgoing"
	CallStatePendingIncoming CallState = "pending_incoming"
	CallStateActive          CallState = "active"
	// CallStateEnded is only ever reported in an event; the signaler is idle
	// again by the time it is delivered.
	CallStateEnded CallState = "ended"
)

// CallStateEvent is published on every local state change.
type CallStateEvent struct {
	State CallState
	Call  *entity.CallSession
	Err   error
}

// CallSignaler is the call state machine of one local user. It holds at most
// one call and follows it through the store until it terminates.
type CallSignaler struct {
	uc      *CallUseCase
	localID string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	events chan CallStateEvent

	mutex       sync.Mutex
	state       CallState
	call        *entity.CallSession
	watchCancel context.CancelFunc
}

// NewSignaler starts observing calls placed to localID. Close releases it.
func (uc *CallUseCase) NewSignaler(ctx context.Context, localID string) *CallSignaler {
	ctx, cancel := context.WithCancel(ctx)
	s := &CallSignaler{
		uc:      uc,
		localID: localID,
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan CallStateEvent, 32),
		state:   CallStateIdle,
	}

	incoming := uc.ObserveIncoming(ctx, localID)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for event := range incoming.Events() {
			if event.Err != nil {
				s.publish(CallStateEvent{State: s.State(), Err: event.Err})
				continue
			}
			s.onIncoming(event.Call)
		}
	}()

	return s
}

func (s *CallSignaler) Events() <-chan CallStateEvent {
	return s.events
}

func (s *CallSignaler) State() CallState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// Current returns the held call, nil while idle.
func (s *CallSignaler) Current() *entity.CallSession {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.call
}

// Initiate places a call to remoteID and holds it as pending outgoing.
func (s *CallSignaler) Initiate(ctx context.Context, remoteID string) (*entity.CallSession, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state != CallStateIdle {
		return nil, errors.CallStateConflict("A call is already in progress")
	}

	call, err := s.uc.Initiate(ctx, s.localID, remoteID)
	if err != nil {
		return nil, err
	}
	s.hold(CallStatePendingOutgoing, call)
	return call, nil
}

// Accept moves the pending incoming call callID to active.
func (s *CallSignaler) Accept(ctx context.Context, callID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state != CallStatePendingIncoming || s.call.ID != callID {
		return errors.CallStateConflict("No pending incoming call " + callID)
	}
	s.acceptLocked(ctx)
	return nil
}

func (s *CallSignaler) acceptLocked(ctx context.Context) {
	if err := s.uc.Accept(ctx, s.call.ID); err != nil {
		log.Printf("AcceptCall Warning: callID=%s: %v", s.call.ID, err)
	}
	accepted := *s.call
	accepted.Status = entity.CallStatusAccepted
	s.call = &accepted
	s.state = CallStateActive
	s.publishLocked(CallStateEvent{State: CallStateActive, Call: s.call})
}

// Reject refuses the pending incoming call callID and returns to idle.
func (s *CallSignaler) Reject(ctx context.Context, callID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state != CallStatePendingIncoming || s.call.ID != callID {
		return errors.CallStateConflict("No pending incoming call " + callID)
	}
	if err := s.uc.Reject(ctx, callID); err != nil {
		return err
	}
	s.releaseLocked(entity.CallStatusRejected)
	return nil
}

// End hangs up the held call, whatever its state, and returns to idle.
func (s *CallSignaler) End(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state == CallStateIdle {
		return errors.CallStateConflict("No call to end")
	}
	if err := s.uc.End(ctx, s.call.ID); err != nil {
		return err
	}
	s.releaseLocked(entity.CallStatusEnded)
	return nil
}

// Close stops all observers. A held call is ended first so the peer is not
// left ringing.
func (s *CallSignaler) Close() {
	s.cancel()

	s.mutex.Lock()
	var err error
	switch s.state {
	case CallStatePendingOutgoing, CallStateActive:
		err = s.uc.End(context.Background(), s.call.ID)
	case CallStatePendingIncoming:
		// Another connection of the same user may already have answered.
		err = s.uc.EndPending(context.Background(), s.call.ID)
	}
	if err != nil {
		log.Printf("CloseSignaler Warning: failed to end call %s: %v", s.call.ID, err)
	}
	s.state = CallStateIdle
	s.call = nil
	s.mutex.Unlock()

	s.wg.Wait()
}

func (s *CallSignaler) onIncoming(call *entity.CallSession) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	switch s.state {
	case CallStateIdle:
		s.hold(CallStatePendingIncoming, call)

	case CallStatePendingOutgoing:
		peer := call.Peer(s.localID)
		if peer != s.call.Peer(s.localID) {
			log.Printf("IncomingCall: user %s busy, ignoring call %s from %s", s.localID, call.ID, call.CreatedBy)
			return
		}
		// Both sides called each other. The greater id gives up its own
		// attempt and takes the peer's; the smaller one keeps waiting.
		if s.localID < peer {
			log.Printf("IncomingCall: mutual call with %s, keeping own call %s", peer, s.call.ID)
			return
		}
		log.Printf("IncomingCall: mutual call with %s, switching from %s to %s", peer, s.call.ID, call.ID)
		if err := s.uc.End(s.ctx, s.call.ID); err != nil {
			log.Printf("IncomingCall Warning: failed to end own call %s: %v", s.call.ID, err)
		}
		s.hold(CallStatePendingIncoming, call)
		s.acceptLocked(s.ctx)

	default:
		log.Printf("IncomingCall: user %s busy, ignoring call %s from %s", s.localID, call.ID, call.CreatedBy)
	}
}

// hold makes call the current call and starts watching it for remote changes.
func (s *CallSignaler) hold(state CallState, call *entity.CallSession) {
	if s.watchCancel != nil {
		s.watchCancel()
	}
	s.state = state
	s.call = call

	ctx, cancel := context.WithCancel(s.ctx)
	s.watchCancel = cancel
	watch := s.uc.WatchCall(ctx, call.ID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for update := range watch.Events() {
			s.onCallUpdate(update)
		}
	}()

	s.publishLocked(CallStateEvent{State: state, Call: call})
}

func (s *CallSignaler) onCallUpdate(update CallUpdate) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.call == nil || s.call.ID != update.CallID {
		return
	}
	if update.Err != nil {
		s.publishLocked(CallStateEvent{State: s.state, Call: s.call, Err: update.Err})
		return
	}

	switch {
	case update.Call == nil:
		s.releaseLocked(entity.CallStatusEnded)
	case update.Call.Status.Terminal():
		s.call = update.Call
		s.releaseLocked(update.Call.Status)
	case update.Call.Status == entity.CallStatusAccepted && s.state == CallStatePendingOutgoing:
		s.call = update.Call
		s.state = CallStateActive
		s.publishLocked(CallStateEvent{State: CallStateActive, Call: s.call})
	case update.Call.Status == entity.CallStatusAccepted && s.state == CallStatePendingIncoming:
		log.Printf("IncomingCall: call %s answered on another connection of %s", update.CallID, s.localID)
		s.call = update.Call
		s.releaseLocked(entity.CallStatusAccepted)
	}
}

// releaseLocked drops the held call and reports it ended with status.
func (s *CallSignaler) releaseLocked(status entity.CallStatus) {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	ended := *s.call
	ended.Status = status
	s.state = CallStateIdle
	s.call = nil
	s.publishLocked(CallStateEvent{State: CallStateEnded, Call: &ended})
}

func (s *CallSignaler) publish(event CallStateEvent) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.publishLocked(event)
}

func (s *CallSignaler) publishLocked(event CallStateEvent) {
	select {
	case s.events <- event:
	case <-s.ctx.Done():
	}
}
