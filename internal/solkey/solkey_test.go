package solkey

import "testing"

func TestValidAddress(t *testing.T) {
	// WSOL mint, 32 bytes on decode.
	if !ValidAddress("So11111111111111111111111111111111111111112") {
		t.Error("WSOL mint should be a valid address")
	}

	cases := []string{
		"",
		"not-base58-0OIl",
		"abc",                // too short after decode
		"So1111111111111112", // truncated
	}
	for _, s := range cases {
		if ValidAddress(s) {
			t.Errorf("ValidAddress(%q) = true, want false", s)
		}
	}
}

func TestValidWallet_RejectsGarbage(t *testing.T) {
	if ValidWallet("short") {
		t.Error("garbage should not validate as a wallet")
	}
	if ValidWallet("") {
		t.Error("empty string should not validate as a wallet")
	}
}
