package mysql

import "testing"

func TestAtomicBool(t *testing.T) {
	var b atomicBool
	if b.IsSet() {
		t.Fatal("expected value to be false")
	}

	b.Set(true)
	if b.value != 1 {
		t.Fatal("Set(true) did not set value to 1")
	}
	if !b.IsSet() {
		t.Fatal("expected value to be true")
	}

	b.Set(false)
	if b.value != 0 {
		t.Fatal("Set(false) did not set value to 0")
	}
	if b.IsSet() {
		t.Fatal("expected value to be false")
	}

	if b.TrySet(false) {
		t.Fatal("expected TrySet(false) to fail")
	}
	if !b.TrySet(true) {
		t.Fatal("expected TrySet(true) to succeed")
	}
	if !b.IsSet() {
		t.Fatal("expected value to be true")
	}
	if b.TrySet(true) {
		t.Fatal("expected TrySet(true) to fail")
	}
	if !b.TrySet(false) {
		t.Fatal("expected TrySet(false) to succeed")
	}
	if b.IsSet() {
		t.Fatal("expected value to be false")
	}

	b._noCopy.Lock() // exercise the vet no-copy marker
}
