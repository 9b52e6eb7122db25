package signal

import "testing"

func TestMultipleShutdownDoesntPanic(t *testing.T) {
	tok := NewToken()
	tok.Shutdown()
	tok.Shutdown()
}

func TestDoneClosesAfterShutdown(t *testing.T) {
	tok := NewToken()
	tok.Shutdown()
	select {
	case <-tok.Done():
	default:
		t.Fatal("Done() channel should be closed after Shutdown()")
	}
}

func TestDoneBlocksBeforeShutdown(t *testing.T) {
	tok := NewToken()
	select {
	case <-tok.Done():
		t.Fatal("Done() channel should not be closed before Shutdown()")
	default:
	}
}
