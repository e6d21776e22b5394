package http2

import "testing"

func TestReqBodyStateMustAdvance(t *testing.T) {
	s := NewStream(1, 0, 0)

	s.SetReqBodyState(ReqBodyOpenBeforeFirstFrame)
	s.SetReqBodyState(ReqBodyOpen)
	s.SetReqBodyState(ReqBodyCloseQueued)

	s.proceedReq = func(int) {}
	s.SetReqBodyState(ReqBodyCloseDelivered)

	if s.proceedReq != nil {
		t.Fatal("proceedReq must be cleared on CloseDelivered")
	}
}

func TestReqBodyStateRejectsRegression(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on non-monotonic request body state transition")
		}
	}()

	s := NewStream(1, 0, 0)
	s.SetReqBodyState(ReqBodyOpen)
	s.SetReqBodyState(ReqBodyOpenBeforeFirstFrame)
}

func TestStreamStateIsClosed(t *testing.T) {
	if StreamStateSendBodyIsFinal.IsClosed() {
		t.Fatal("SendBodyIsFinal must not be terminal")
	}
	if !StreamStateEndStream.IsClosed() {
		t.Fatal("EndStream must be terminal")
	}
}
