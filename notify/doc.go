// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package notify delivers one-time codes out of band.

  - SMTPSender relays mail through Config.SMTPAddr
  - LogSender logs the code (development, no SMTP configured)

Tests deliver into testutil.Recorder.

Delivery errors are returned, never swallowed; the otp package turns them
into models.ErrDeliveryFailed.
*/
package notify
