package idt

import "testing"

func TestHandleInterruptDispatchesRegisteredHandler(t *testing.T) {
	var got *Registers
	HandleInterrupt(TimerVector, func(r *Registers) { got = r })
	defer HandleInterrupt(TimerVector, nil)

	want := &Registers{Vector: TimerVector}
	dispatchInterrupt(want)

	if got != want {
		t.Fatalf("dispatchInterrupt did not invoke the registered handler")
	}
}

func TestDispatchFallsBackToDefaultHandler(t *testing.T) {
	HandleInterrupt(5, nil)

	defer func() {
		if recover() == nil {
			t.Fatal("expected defaultHandler to panic for an unregistered vector")
		}
	}()
	dispatchInterrupt(&Registers{Vector: 5})
}
