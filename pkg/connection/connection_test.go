package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("DefaultSequence", func(t *testing.T) {
		b := NewBackoff()

		// Expected sequence (without jitter): 1s, 2s, 4s, 8s, 16s, 32s, 60s, 60s...
		expected := []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			32 * time.Second,
			60 * time.Second,
			60 * time.Second, // Should stay at max
		}

		for i, exp := range expected {
			// Get the base (current) value before adding jitter
			base := b.Current()
			_ = b.Next() // Advance

			// Allow for some floating point imprecision
			if base < exp-time.Millisecond || base > exp+time.Millisecond {
				t.Errorf("Attempt %d: base = %v, want %v", i, base, exp)
			}
		}
	})

	t.Run("Jitter", func(t *testing.T) {
		b := NewBackoff()

		// Collect multiple samples to verify jitter is being applied
		samples := make([]time.Duration, 10)
		for i := range samples {
			samples[i] = b.Peek()
		}

		// All samples should be between 1s and 1.25s (with jitter)
		for i, s := range samples {
			if s < 1*time.Second || s > time.Duration(float64(1*time.Second)*1.25)+time.Millisecond {
				t.Errorf("Sample %d: %v out of expected range [1s, 1.25s]", i, s)
			}
		}

		// At least some samples should be different (jitter should vary)
		allSame := true
		for i := 1; i < len(samples); i++ {
			if samples[i] != samples[0] {
				allSame = false
				break
			}
		}
		if allSame {
			t.Error("All jittered samples are identical - jitter may not be working")
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoff()

		// Advance a few times
		for i := 0; i < 5; i++ {
			b.Next()
		}

		if b.Current() <= InitialBackoff {
			t.Error("Backoff should have increased")
		}

		// Reset
		b.Reset()

		if b.Current() != InitialBackoff {
			t.Errorf("Current() = %v after reset, want %v", b.Current(), InitialBackoff)
		}
		if b.Attempts() != 0 {
			t.Errorf("Attempts() = %d after reset, want 0", b.Attempts())
		}
	})

	t.Run("Attempts", func(t *testing.T) {
		b := NewBackoff()

		if b.Attempts() != 0 {
			t.Errorf("Initial Attempts() = %d, want 0", b.Attempts())
		}

		for i := 1; i <= 5; i++ {
			b.Next()
			if b.Attempts() != i {
				t.Errorf("After %d calls, Attempts() = %d", i, b.Attempts())
			}
		}
	})

	t.Run("CustomConfig", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{
			Initial:    100 * time.Millisecond,
			Max:        500 * time.Millisecond,
			Multiplier: 2.0,
			Jitter:     0, // No jitter for deterministic test
		})

		expected := []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			500 * time.Millisecond, // Max
			500 * time.Millisecond,
		}

		for i, exp := range expected {
			got := b.Next()
			if got != exp {
				t.Errorf("Attempt %d: got %v, want %v", i, got, exp)
			}
		}
	})
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Backoff = BackoffConfig{
		Initial:    20 * time.Millisecond,
		Max:        80 * time.Millisecond,
		Multiplier: 2.0,
		Jitter:     0,
	}
	cfg.AttemptTimeout = time.Second
	return cfg
}

func TestManager(t *testing.T) {
	t.Run("InitialState", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil })
		defer m.Close()

		if m.State() != StateDisconnected {
			t.Errorf("Initial state = %v, want StateDisconnected", m.State())
		}
		if m.IsConnected() {
			t.Error("IsConnected() = true, want false")
		}
	})

	t.Run("SuccessfulConnect", func(t *testing.T) {
		connectCalled := false
		m := NewManager(func(ctx context.Context) error {
			connectCalled = true
			return nil
		})
		defer m.Close()

		var connectedCalled bool
		m.OnConnected(func() { connectedCalled = true })

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		if !connectCalled {
			t.Error("Connect function was not called")
		}
		if !connectedCalled {
			t.Error("OnConnected callback was not called")
		}
		if m.State() != StateConnected {
			t.Errorf("State() = %v, want StateConnected", m.State())
		}
	})

	t.Run("FailedConnect", func(t *testing.T) {
		expectedErr := errors.New("connack refused: bad user name or password")
		m := NewManager(func(ctx context.Context) error { return expectedErr })
		defer m.Close()

		if err := m.Connect(context.Background()); !errors.Is(err, expectedErr) {
			t.Errorf("Connect() error = %v, want %v", err, expectedErr)
		}
		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want StateDisconnected", m.State())
		}
	})

	t.Run("AlreadyConnected", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil })
		defer m.Close()

		_ = m.Connect(context.Background())
		if err := m.Connect(context.Background()); err != ErrAlreadyConnected {
			t.Errorf("Second Connect() error = %v, want ErrAlreadyConnected", err)
		}
	})

	t.Run("ConnectAfterClose", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil })
		m.Close()

		if err := m.Connect(context.Background()); err != ErrConnectionClosed {
			t.Errorf("Connect() error = %v, want ErrConnectionClosed", err)
		}
	})

	t.Run("Disconnect", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil })
		defer m.Close()

		_ = m.Connect(context.Background())

		var disconnectedCalled bool
		var cause error = errors.New("sentinel")
		m.OnDisconnected(func(err error) {
			disconnectedCalled = true
			cause = err
		})

		m.Disconnect()

		if !disconnectedCalled {
			t.Error("OnDisconnected callback was not called")
		}
		if cause != nil {
			t.Errorf("deliberate disconnect reported cause %v", cause)
		}
		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want StateDisconnected", m.State())
		}
	})

	t.Run("StateChangeCallback", func(t *testing.T) {
		m := NewManager(func(ctx context.Context) error { return nil })
		defer m.Close()

		var transitions []struct{ old, new State }
		m.OnStateChange(func(old, new State) {
			transitions = append(transitions, struct{ old, new State }{old, new})
		})

		_ = m.Connect(context.Background())
		m.Disconnect()

		expected := []struct{ old, new State }{
			{StateDisconnected, StateConnecting},
			{StateConnecting, StateConnected},
			{StateConnected, StateDisconnected},
		}

		if len(transitions) != len(expected) {
			t.Fatalf("Got %d transitions, want %d", len(transitions), len(expected))
		}
		for i, exp := range expected {
			if transitions[i] != exp {
				t.Errorf("Transition %d: got %v→%v, want %v→%v",
					i, transitions[i].old, transitions[i].new, exp.old, exp.new)
			}
		}
	})
}

func TestManagerReconnect(t *testing.T) {
	t.Run("ReconnectAfterLoss", func(t *testing.T) {
		var connectCount atomic.Int32
		m := NewManagerWithConfig(func(ctx context.Context) error {
			connectCount.Add(1)
			return nil
		}, fastConfig())
		m.StartReconnectLoop()
		defer m.Close()

		var lostCause atomic.Value
		m.OnDisconnected(func(err error) {
			if err != nil {
				lostCause.Store(err)
			}
		})
		reconnected := make(chan struct{}, 2)
		m.OnConnected(func() { reconnected <- struct{}{} })

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Initial Connect() error = %v", err)
		}
		<-reconnected

		m.NotifyConnectionLost(errors.New("EOF"))

		select {
		case <-reconnected:
		case <-time.After(2 * time.Second):
			t.Fatal("did not reconnect")
		}

		if m.State() != StateConnected {
			t.Errorf("State() = %v, want StateConnected after reconnect", m.State())
		}
		if connectCount.Load() != 2 {
			t.Errorf("Connect was called %d times, want 2", connectCount.Load())
		}
		if lostCause.Load() == nil {
			t.Error("OnDisconnected did not receive the loss cause")
		}
		if m.BackoffAttempts() != 0 {
			t.Errorf("backoff not reset: %d attempts", m.BackoffAttempts())
		}
	})

	t.Run("BackoffOnFailure", func(t *testing.T) {
		var connectCount atomic.Int32
		var mu sync.Mutex
		var attempts []time.Time
		var failures atomic.Int32

		m := NewManagerWithConfig(func(ctx context.Context) error {
			mu.Lock()
			attempts = append(attempts, time.Now())
			mu.Unlock()

			if connectCount.Add(1) < 4 {
				return errors.New("dial tcp: connection refused")
			}
			return nil
		}, fastConfig())
		m.OnAttemptFailed(func(attempt int, err error) { failures.Add(1) })

		var delays []time.Duration
		m.OnReconnecting(func(attempt int, delay time.Duration) {
			mu.Lock()
			delays = append(delays, delay)
			mu.Unlock()
		})

		m.StartReconnectLoop()
		defer m.Close()

		// First connect succeeds, then the link drops and the broker refuses
		// twice before accepting again.
		if err := m.Connect(context.Background()); err != nil {
			t.Fatal(err)
		}
		m.NotifyConnectionLost(errors.New("keepalive timeout"))

		deadline := time.Now().Add(2 * time.Second)
		for m.State() != StateConnected && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if m.State() != StateConnected {
			t.Fatalf("Final state = %v, want StateConnected", m.State())
		}

		mu.Lock()
		defer mu.Unlock()
		if len(attempts) != 4 {
			t.Fatalf("got %d connect calls, want 4", len(attempts))
		}
		if failures.Load() != 2 {
			t.Errorf("OnAttemptFailed called %d times, want 2", failures.Load())
		}
		want := []time.Duration{20 * time.Millisecond, 40 * time.Millisecond, 80 * time.Millisecond}
		if len(delays) != len(want) {
			t.Fatalf("got delays %v, want %v", delays, want)
		}
		for i := range want {
			if delays[i] != want[i] {
				t.Errorf("delay %d = %v, want %v", i, delays[i], want[i])
			}
		}
	})

	t.Run("DisabledAutoReconnect", func(t *testing.T) {
		var connectCount atomic.Int32
		cfg := fastConfig()
		cfg.AutoReconnect = false
		m := NewManagerWithConfig(func(ctx context.Context) error {
			connectCount.Add(1)
			return nil
		}, cfg)
		m.StartReconnectLoop()
		defer m.Close()

		_ = m.Connect(context.Background())
		m.NotifyConnectionLost(errors.New("EOF"))

		time.Sleep(100 * time.Millisecond)

		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want StateDisconnected (no auto-reconnect)", m.State())
		}
		if connectCount.Load() != 1 {
			t.Errorf("Connect called %d times, want 1 (no reconnection)", connectCount.Load())
		}
	})

	t.Run("DisconnectStopsReconnecting", func(t *testing.T) {
		var connectCount atomic.Int32
		m := NewManagerWithConfig(func(ctx context.Context) error {
			if connectCount.Add(1) == 1 {
				return nil
			}
			return errors.New("refused")
		}, fastConfig())
		m.StartReconnectLoop()
		defer m.Close()

		_ = m.Connect(context.Background())
		m.NotifyConnectionLost(errors.New("EOF"))
		time.Sleep(50 * time.Millisecond)
		m.Disconnect()

		settled := connectCount.Load()
		time.Sleep(200 * time.Millisecond)
		if connectCount.Load() > settled+1 {
			t.Errorf("reconnect loop kept running after Disconnect: %d → %d calls", settled, connectCount.Load())
		}
		if m.State() != StateDisconnected {
			t.Errorf("State() = %v, want StateDisconnected", m.State())
		}
	})
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "DISCONNECTED"},
		{StateConnecting, "CONNECTING"},
		{StateConnected, "CONNECTED"},
		{StateReconnecting, "RECONNECTING"},
		{StateClosed, "CLOSED"},
		{State(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
