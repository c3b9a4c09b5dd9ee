package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"aquafarm"
	"aquafarm/internal/logger"
	"aquafarm/internal/repository"
)

// Transport failure surfaced after retries are exhausted. The cached device
// state is left unchanged so the next evaluation retries the command.
var ErrDeviceUnreachable = errors.New("device unreachable")

var ErrDeviceNotFound = errors.New("device not found")

// Dispatch tuning knobs.
const (
	sendTimeout    = 3 * time.Second
	maxSendRetries = 3
	retryBackoff   = 200 * time.Millisecond
)

// CommandSender is the boundary to the device-control transport. The command
// string is always one of the device's two configured strings, and the
// transport is expected to acknowledge within the context deadline.
type CommandSender interface {
	Send(ctx context.Context, deviceID int, command string) error
}

// LoopbackSender acknowledges every command locally. It stands in for the
// out-of-scope hardware transport in development and tests.
type LoopbackSender struct {
	log *logger.Logger
}

func NewLoopbackSender(log *logger.Logger) *LoopbackSender { return &LoopbackSender{log: log} }

func (s *LoopbackSender) Send(_ context.Context, deviceID int, command string) error {
	if s.log != nil {
		s.log.Infow("device_command_loopback", "device_id", deviceID, "command", command)
	}
	return nil
}

// DispatcherService converts desired device states into idempotent commands.
// All Apply calls are serialized per device so competing decisions from jobs
// mapped to the same device cannot interleave and the cached state never
// races.
type DispatcherService struct {
	deviceRepo repository.DeviceRepo
	eventRepo  repository.EventRepo
	log        *logger.Logger
	sender     CommandSender

	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewDispatcherService(deviceRepo repository.DeviceRepo, eventRepo repository.EventRepo, log *logger.Logger, sender CommandSender) *DispatcherService {
	if sender == nil {
		sender = NewLoopbackSender(log)
	}
	return &DispatcherService{
		deviceRepo: deviceRepo,
		eventRepo:  eventRepo,
		log:        log,
		sender:     sender,
		locks:      make(map[int]*sync.Mutex),
	}
}

func (s *DispatcherService) deviceLock(deviceID int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[deviceID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[deviceID] = m
	}
	return m
}

// Apply reconciles the desired state against the device's last-known state.
// An already-applied state is a no-op: the dispatcher never re-sends an
// identical command. The cached state is updated only after the transport
// confirms the send.
func (s *DispatcherService) Apply(ctx context.Context, deviceID int, desired bool) error {
	lock := s.deviceLock(deviceID)
	lock.Lock()
	defer lock.Unlock()

	device, err := s.deviceRepo.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: id %d", ErrDeviceNotFound, deviceID)
		}
		return fmt.Errorf("load device %d: %w", deviceID, err)
	}
	if device.State == desired {
		return nil
	}

	command := device.CommandOff
	if desired {
		command = device.CommandOn
	}

	if err := s.sendWithRetry(ctx, deviceID, command); err != nil {
		s.appendEvent(ctx, aquafarm.EventDeviceError,
			fmt.Sprintf("Command %q to device %d failed", command, deviceID),
			map[string]any{"device_id": deviceID, "command": command, "err": err.Error()})
		return fmt.Errorf("%w: device %d command %q: %v", ErrDeviceUnreachable, deviceID, command, err)
	}

	now := time.Now().UTC()
	if err := s.deviceRepo.SetState(ctx, deviceID, desired, now); err != nil {
		return fmt.Errorf("persist device %d state: %w", deviceID, err)
	}

	s.appendEvent(ctx, aquafarm.EventDeviceCommand,
		fmt.Sprintf("Device %d switched %s", deviceID, onOff(desired)),
		map[string]any{"device_id": deviceID, "command": command, "state": desired})
	s.log.Infow("device_command_sent", "device_id", deviceID, "command", command, "state", desired)
	return nil
}

// sendWithRetry sends the command with a per-attempt timeout and bounded
// backoff. A canceled parent context stops the retry loop immediately.
func (s *DispatcherService) sendWithRetry(ctx context.Context, deviceID int, command string) error {
	var lastErr error
	for attempt := 1; attempt <= maxSendRetries; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		lastErr = s.sender.Send(sendCtx, deviceID, command)
		cancel()
		if lastErr == nil {
			return nil
		}
		s.log.Warnw("device_send_failed",
			"device_id", deviceID, "command", command, "attempt", attempt, "err", lastErr)

		if attempt == maxSendRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}
	return lastErr
}

func (s *DispatcherService) Devices(ctx context.Context) ([]aquafarm.ControlDevice, error) {
	return s.deviceRepo.List(ctx)
}

func (s *DispatcherService) appendEvent(ctx context.Context, typ, msg string, meta map[string]any) {
	err := s.eventRepo.Append(ctx, aquafarm.EngineEvent{
		Type:        typ,
		Description: msg,
		Metadata:    meta,
	})
	if err != nil && s.log != nil {
		s.log.Warnw("event_append_failed", "type", typ, "err", err)
	}
}

func onOff(state bool) string {
	if state {
		return "on"
	}
	return "off"
}
