package authflow

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRequestCodeValidDestinations(t *testing.T) {
	valid := []struct {
		input string
		want  string
	}{
		{"9876543210", "+919876543210"},
		{"6000000000", "+916000000000"},
		{"7123456789", "+917123456789"},
		{"8999999999", "+918999999999"},
		{"+919876543210", "+919876543210"},
		{"98765 43210", "+919876543210"},
	}
	for _, tc := range valid {
		t.Run(tc.input, func(t *testing.T) {
			client := &fakeClient{sendFn: acceptSend}
			engine, _ := newTestEngine(t, client)
			v := engine.NewVerifier()

			mustRequestCode(t, v, tc.input)

			pending, ok := v.Pending()
			if !ok {
				t.Fatal("expected a pending verification")
			}
			if pending.Destination != tc.want {
				t.Fatalf("destination = %q, want %q", pending.Destination, tc.want)
			}
			if pending.AttemptsMade != 0 || pending.MaxAttempts != 3 || pending.CodeLength != 6 {
				t.Fatalf("unexpected pending: %+v", pending)
			}
			if v.State() != VerifierSent {
				t.Fatalf("state = %v, want sent", v.State())
			}
		})
	}
}

func TestRequestCodeRejectsBadDestinationsBeforeNetwork(t *testing.T) {
	invalid := []string{
		"",
		"12345",
		"0123456789",
		"5876543210",
		"98765432100",
		"987654321",
		"98765abcde",
	}
	for _, phone := range invalid {
		t.Run(phone, func(t *testing.T) {
			client := &fakeClient{sendFn: acceptSend}
			engine, _ := newTestEngine(t, client)
			v := engine.NewVerifier()

			err := v.RequestCode(context.Background(), Destination{Channel: ChannelPhone, Value: phone})
			if !errors.Is(err, ErrInvalidDestination) {
				t.Fatalf("err = %v, want ErrInvalidDestination", err)
			}
			if client.calls().sendCalls != 0 {
				t.Fatal("validation failure must not reach the network")
			}
			if _, ok := v.Pending(); ok {
				t.Fatal("no pending verification should exist")
			}
		})
	}
}

func TestRequestCodeEmailDestination(t *testing.T) {
	client := &fakeClient{sendFn: acceptSend}
	engine, _ := newTestEngine(t, client)
	v := engine.NewVerifier()

	err := v.RequestCode(context.Background(), Destination{Channel: ChannelEmail, Value: "user@salon.example"})
	if err != nil {
		t.Fatalf("RequestCode email: %v", err)
	}

	err = v.RequestCode(context.Background(), Destination{Channel: ChannelEmail, Value: "not-an-email"})
	if !errors.Is(err, ErrInvalidDestination) {
		t.Fatalf("err = %v, want ErrInvalidDestination", err)
	}
}

func TestAutoSubmitTriggersExactlyOnceAtFullLength(t *testing.T) {
	client := &fakeClient{
		sendFn: acceptSend,
		verifyFn: func(dest Destination, code string) (AuthResult, error) {
			if code != "123456" {
				return AuthResult{}, ErrInvalidCode
			}
			return AuthResult{Identity: customerIdentity(), Token: "tok"}, nil
		},
	}
	engine, _ := newTestEngine(t, client)
	v := engine.NewVerifier()
	ctx := context.Background()

	mustRequestCode(t, v, testPhone)

	// One digit at a time: no network call until the sixth.
	for _, d := range []string{"1", "2", "3", "4", "5"} {
		result, err := v.EnterDigits(ctx, d)
		if err != nil || result != nil {
			t.Fatalf("partial input produced result=%v err=%v", result, err)
		}
		if client.calls().verifyCalls != 0 {
			t.Fatalf("partial input triggered a network call after %q", d)
		}
	}

	result, err := v.EnterDigits(ctx, "6")
	if err != nil {
		t.Fatalf("EnterDigits final: %v", err)
	}
	if result == nil || result.Token != "tok" {
		t.Fatalf("expected auth result, got %+v", result)
	}
	if got := client.calls().verifyCalls; got != 1 {
		t.Fatalf("verify calls = %d, want exactly 1", got)
	}
	if v.State() != VerifierVerified {
		t.Fatalf("state = %v, want verified", v.State())
	}
}

func TestAutoSubmitIgnoresKeystrokesWhileVerifying(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeClient{sendFn: acceptSend})
	v := engine.NewVerifier()
	ctx := context.Background()

	var extraResult *AuthResult
	client := &fakeClient{
		sendFn: acceptSend,
		verifyFn: func(dest Destination, code string) (AuthResult, error) {
			// A keystroke lands while the round-trip is outstanding; it
			// must not trigger a second submission.
			extraResult, _ = v.EnterDigits(ctx, "9")
			return AuthResult{Identity: customerIdentity(), Token: "tok"}, nil
		},
	}
	engine.client = client

	mustRequestCode(t, v, testPhone)

	result, err := v.EnterDigits(ctx, "123456")
	if err != nil {
		t.Fatalf("EnterDigits: %v", err)
	}
	if result == nil {
		t.Fatal("expected auth result")
	}
	if extraResult != nil {
		t.Fatal("keystroke during verification produced a result")
	}
	if got := client.calls().verifyCalls; got != 1 {
		t.Fatalf("verify calls = %d, want exactly 1", got)
	}
}

func TestSubmitCodeIncompleteIsNoop(t *testing.T) {
	client := &fakeClient{sendFn: acceptSend}
	engine, _ := newTestEngine(t, client)
	v := engine.NewVerifier()

	mustRequestCode(t, v, testPhone)

	if _, err := v.SubmitCode(context.Background(), "123"); !errors.Is(err, ErrIncompleteCode) {
		t.Fatalf("err = %v, want ErrIncompleteCode", err)
	}
	if client.calls().verifyCalls != 0 {
		t.Fatal("incomplete code must not reach the network")
	}
}

func TestThreeFailuresReachRejectedAndFourthIsBlocked(t *testing.T) {
	client := &fakeClient{
		sendFn: acceptSend,
		verifyFn: func(dest Destination, code string) (AuthResult, error) {
			return AuthResult{}, ErrInvalidCode
		},
	}
	engine, clock := newTestEngine(t, client)
	v := engine.NewVerifier()
	ctx := context.Background()

	mustRequestCode(t, v, testPhone)

	for i := 1; i <= 2; i++ {
		if _, err := v.SubmitCode(ctx, "000000"); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("attempt %d err = %v, want ErrInvalidCode", i, err)
		}
		if v.State() != VerifierSent {
			t.Fatalf("attempt %d state = %v, want sent", i, v.State())
		}
		if v.EnteredDigits() != "" {
			t.Fatal("failed attempt must clear the entered code")
		}
	}

	if _, err := v.SubmitCode(ctx, "000000"); !errors.Is(err, ErrAttemptsExceeded) {
		t.Fatalf("third attempt err = %v, want ErrAttemptsExceeded", err)
	}
	if v.State() != VerifierRejected {
		t.Fatalf("state = %v, want rejected", v.State())
	}

	// A fourth attempt never reaches the network.
	calls := client.calls().verifyCalls
	if _, err := v.SubmitCode(ctx, "000000"); !errors.Is(err, ErrAttemptsExceeded) {
		t.Fatalf("fourth attempt err = %v, want ErrAttemptsExceeded", err)
	}
	if client.calls().verifyCalls != calls {
		t.Fatal("rejected verifier must not submit")
	}

	// Resend restores a fresh challenge with zero attempts.
	clock.Advance(30 * time.Second)
	if err := v.ResendCode(ctx); err != nil {
		t.Fatalf("ResendCode: %v", err)
	}
	pending, _ := v.Pending()
	if pending.AttemptsMade != 0 {
		t.Fatalf("attempts after resend = %d, want 0", pending.AttemptsMade)
	}
	if v.State() != VerifierSent {
		t.Fatalf("state after resend = %v, want sent", v.State())
	}
}

func TestAttemptCountedBeforeRoundTripResolves(t *testing.T) {
	var midFlight int
	engine, _ := newTestEngine(t, &fakeClient{sendFn: acceptSend})
	v := engine.NewVerifier()

	client := &fakeClient{
		sendFn: acceptSend,
		verifyFn: func(dest Destination, code string) (AuthResult, error) {
			pending, _ := v.Pending()
			midFlight = pending.AttemptsMade
			return AuthResult{}, ErrInvalidCode
		},
	}
	engine.client = client

	mustRequestCode(t, v, testPhone)
	_, _ = v.SubmitCode(context.Background(), "000000")

	if midFlight != 1 {
		t.Fatalf("attempts observed mid-flight = %d, want 1", midFlight)
	}
}

func TestResendCooldown(t *testing.T) {
	client := &fakeClient{sendFn: acceptSend}
	engine, clock := newTestEngine(t, client)
	v := engine.NewVerifier()
	ctx := context.Background()

	mustRequestCode(t, v, testPhone)

	if v.CanResend() {
		t.Fatal("resend must not be available immediately")
	}
	if err := v.ResendCode(ctx); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("err = %v, want ErrCooldownActive", err)
	}

	clock.Advance(29 * time.Second)
	if v.CanResend() {
		t.Fatal("resend available before cooldown elapsed")
	}
	if got := v.ResendRemaining(); got != time.Second {
		t.Fatalf("ResendRemaining = %v, want 1s", got)
	}

	clock.Advance(time.Second)
	if !v.CanResend() {
		t.Fatal("resend should be available at cooldown end")
	}
	if err := v.ResendCode(ctx); err != nil {
		t.Fatalf("ResendCode: %v", err)
	}
	if v.CanResend() {
		t.Fatal("cooldown must restart after resend")
	}
	if got := client.calls().sendCalls; got != 2 {
		t.Fatalf("send calls = %d, want 2", got)
	}
}

func TestEchoCodeGatedByEnvironment(t *testing.T) {
	echoSend := func(dest Destination) (SendCodeResult, error) {
		return SendCodeResult{Accepted: true, DevelopmentEchoCode: "424242"}, nil
	}

	prod, _ := newTestEngine(t, &fakeClient{sendFn: echoSend})
	v := prod.NewVerifier()
	mustRequestCode(t, v, testPhone)
	if v.EchoCode() != "" {
		t.Fatal("echo code must be hidden in production")
	}
	pending, _ := v.Pending()
	if pending.DevelopmentEchoCode != "424242" {
		t.Fatal("echo code must be retained verbatim")
	}

	dev, _ := newTestEngine(t, &fakeClient{sendFn: echoSend}, withEnvironment(EnvDevelopment))
	v = dev.NewVerifier()
	mustRequestCode(t, v, testPhone)
	if v.EchoCode() != "424242" {
		t.Fatalf("EchoCode = %q, want 424242", v.EchoCode())
	}
}

func TestResendKeepsEchoCodeUntilReplacement(t *testing.T) {
	echo := "111111"
	client := &fakeClient{
		sendFn: func(dest Destination) (SendCodeResult, error) {
			return SendCodeResult{Accepted: true, DevelopmentEchoCode: echo}, nil
		},
	}
	engine, clock := newTestEngine(t, client, withEnvironment(EnvDevelopment))
	v := engine.NewVerifier()
	ctx := context.Background()

	mustRequestCode(t, v, testPhone)

	echo = "222222"
	clock.Advance(30 * time.Second)
	if err := v.ResendCode(ctx); err != nil {
		t.Fatalf("ResendCode: %v", err)
	}
	if v.EchoCode() != "222222" {
		t.Fatalf("EchoCode = %q, want replacement", v.EchoCode())
	}
}

func TestCancelDiscardsInFlightVerification(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeClient{sendFn: acceptSend})
	v := engine.NewVerifier()
	ctx := context.Background()

	client := &fakeClient{
		sendFn: acceptSend,
		verifyFn: func(dest Destination, code string) (AuthResult, error) {
			// The flow moves on while this round-trip is outstanding.
			v.Cancel()
			return AuthResult{Identity: customerIdentity(), Token: "tok"}, nil
		},
	}
	engine.client = client

	mustRequestCode(t, v, testPhone)

	result, err := v.SubmitCode(ctx, "123456")
	if !errors.Is(err, ErrNoPendingVerification) {
		t.Fatalf("err = %v, want ErrNoPendingVerification", err)
	}
	if result != nil {
		t.Fatal("cancelled verification must not deliver a result")
	}
	if v.State() != VerifierIdle {
		t.Fatalf("state = %v, want idle", v.State())
	}
}

func TestNewRequestInvalidatesPreviousChallenge(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeClient{sendFn: acceptSend})
	v := engine.NewVerifier()

	mustRequestCode(t, v, testPhone)
	first, _ := v.Pending()

	mustRequestCode(t, v, "9123456780")
	second, _ := v.Pending()

	if first.ID == second.ID {
		t.Fatal("new request must create a fresh challenge")
	}
	if second.Destination == first.Destination {
		t.Fatal("second challenge should carry the new destination")
	}
}

func TestTransportFailureKeepsChallengeLive(t *testing.T) {
	client := &fakeClient{
		sendFn: acceptSend,
		verifyFn: func(dest Destination, code string) (AuthResult, error) {
			return AuthResult{}, errors.New("socket closed")
		},
	}
	engine, _ := newTestEngine(t, client)
	v := engine.NewVerifier()

	mustRequestCode(t, v, testPhone)

	_, err := v.SubmitCode(context.Background(), "123456")
	if !errors.Is(err, ErrChannelUnavailable) {
		t.Fatalf("err = %v, want ErrChannelUnavailable", err)
	}
	if v.State() != VerifierSent {
		t.Fatalf("state = %v, want sent (retryable)", v.State())
	}
	if _, ok := v.Pending(); !ok {
		t.Fatal("challenge must survive a transport failure")
	}
}
