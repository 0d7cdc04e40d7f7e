package pairing

import (
	"testing"

	"github.com/easyshare-net/go-core/internal/model"
)

func TestPairingHappyPath(t *testing.T) {
	alice := model.DeviceInfo{ID: "alice", Name: "Alice"}
	bob := model.DeviceInfo{ID: "bob", Name: "Bob"}

	bobSide := New(bob, func(remote model.DeviceInfo) (string, bool) {
		if remote.ID != "alice" {
			t.Fatalf("unexpected requester %s", remote.ID)
		}
		return "correct horse", true
	})
	aliceSide := New(alice, nil)

	// Alice initiates.
	toBob := aliceSide.Begin("correct horse")
	if len(toBob) != 1 || toBob[0].Type() != "pair_request" {
		t.Fatalf("Begin() should emit a pair_request")
	}

	// Bob receives the request, emits a challenge.
	toAlice, outcome := bobSide.HandleMessage(toBob[0])
	if outcome != OutcomeNone {
		t.Fatalf("bob after pair_request: outcome = %v, want none", outcome)
	}
	if len(toAlice) != 1 || toAlice[0].Type() != "pair_challenge" {
		t.Fatalf("bob should respond with pair_challenge")
	}

	// Alice answers the challenge.
	toBob, outcome = aliceSide.HandleMessage(toAlice[0])
	if outcome != OutcomeNone {
		t.Fatalf("alice after pair_challenge: outcome = %v, want none", outcome)
	}
	if len(toBob) != 1 || toBob[0].Type() != "pair_response" {
		t.Fatalf("alice should respond with pair_response")
	}

	// Bob verifies and confirms.
	toAlice, outcome = bobSide.HandleMessage(toBob[0])
	if outcome != OutcomeSucceeded {
		t.Fatalf("bob after pair_response: outcome = %v, want succeeded", outcome)
	}
	if len(toAlice) != 1 || toAlice[0].Type() != "pair_confirm" {
		t.Fatalf("bob should confirm")
	}

	// Alice receives confirm.
	_, outcome = aliceSide.HandleMessage(toAlice[0])
	if outcome != OutcomeSucceeded {
		t.Fatalf("alice after pair_confirm: outcome = %v, want succeeded", outcome)
	}

	if aliceSide.State.SharedSecret != bobSide.State.SharedSecret {
		t.Fatalf("both sides must derive the same shared secret")
	}
}

func TestPairingWrongPassphraseRejected(t *testing.T) {
	alice := model.DeviceInfo{ID: "alice"}
	bob := model.DeviceInfo{ID: "bob"}

	bobSide := New(bob, func(model.DeviceInfo) (string, bool) { return "bobs-guess", true })
	aliceSide := New(alice, nil)

	toBob := aliceSide.Begin("alices-secret")
	toAlice, _ := bobSide.HandleMessage(toBob[0])
	toBob, _ = aliceSide.HandleMessage(toAlice[0])
	_, outcome := bobSide.HandleMessage(toBob[0])

	if outcome != OutcomeFailed {
		t.Fatalf("mismatched passphrases should fail verification, got %v", outcome)
	}
}

func TestPairingDeclined(t *testing.T) {
	bobSide := New(model.DeviceInfo{ID: "bob"}, func(model.DeviceInfo) (string, bool) { return "", false })
	toBob := []model.Message{&model.PairRequest{Device: model.DeviceInfo{ID: "alice"}}}

	resp, outcome := bobSide.HandleMessage(toBob[0])
	if outcome != OutcomeFailed {
		t.Fatalf("declined pairing should fail, got %v", outcome)
	}
	if len(resp) != 1 || resp[0].Type() != "pair_reject" {
		t.Fatalf("declined pairing should emit pair_reject")
	}
}
