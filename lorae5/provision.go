package lorae5

import (
	"context"
	"fmt"
)

// Identity holds the LoRaWAN credentials written by Provision. Nil fields
// are left unchanged on the modem.
type Identity struct {
	DevEUI *[8]byte
	AppEUI *[8]byte
	AppKey *[16]byte
}

// Provision writes the non-nil fields of id to the modem, in the order
// DevEUI, AppEUI, AppKey. It stops at the first failure.
//
// Each step is a separate command cycle, so a failure part way through
// leaves the earlier fields written.
func (d *Driver) Provision(ctx context.Context, id Identity) error {
	if id.DevEUI != nil {
		if _, err := d.SendCommand(ctx, SetDevEUI{EUI: *id.DevEUI}); err != nil {
			return fmt.Errorf("set DevEui: %w", err)
		}
	}

	if id.AppEUI != nil {
		if _, err := d.SendCommand(ctx, SetAppEUI{EUI: *id.AppEUI}); err != nil {
			return fmt.Errorf("set AppEui: %w", err)
		}
	}

	if id.AppKey != nil {
		if _, err := d.SendCommand(ctx, SetAppKey{Key: *id.AppKey}); err != nil {
			return fmt.Errorf("set AppKey: %w", err)
		}
	}

	return nil
}

// Identify sends AT+ID and returns the first identity line.
func (d *Driver) Identify(ctx context.Context) (ReadIdentityReply, error) {
	reply, err := d.SendCommand(ctx, ReadIdentity{})
	if err != nil {
		return ReadIdentityReply{}, err
	}
	return reply.(ReadIdentityReply), nil
}
