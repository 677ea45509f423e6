// Package otpkeeper is the core of a TOTP/HOTP authenticator.
//
// A Keeper wires the account repository, settings, encrypted backups and
// cloud sync together behind one explicitly constructed value. Platform
// concerns such as the clipboard, screen capture and QR recognition are
// injected as capabilities; the core never branches on the platform.
//
// Codes are a pure function of time. Callers decide when to refresh them:
//
//	k, err := otpkeeper.Open(ctx, cfg, otpkeeper.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	cards, err := k.Cards(ctx)
package otpkeeper
