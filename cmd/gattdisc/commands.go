package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/ARMmbed/mbed-os-sub118/ble"
	"github.com/ARMmbed/mbed-os-sub118/report"
	"github.com/ARMmbed/mbed-os-sub118/util"
	"github.com/ARMmbed/mbed-os-sub118/wire/gatt"
)

// filterFlag returns the UUID given by a command flag, or fallback.
func filterFlag(c *cli.Context, name string, fallback ble.UUID) (ble.UUID, error) {
	s := c.String(name)
	if s == "" {
		return fallback, nil
	}
	u, err := ble.ParseUUID(s)
	return u, errors.Wrapf(err, "--%s", name)
}

func discover(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	service, err := e.cfg.ServiceFilter()
	if err != nil {
		return err
	}
	characteristic, err := e.cfg.CharacteristicFilter()
	if err != nil {
		return err
	}
	if service, err = filterFlag(c, "service", service); err != nil {
		return err
	}
	if characteristic, err = filterFlag(c, "characteristic", characteristic); err != nil {
		return err
	}

	s, err := newSession(e.cfg, e.trace)
	if err != nil {
		return err
	}
	defer s.close()
	s.descriptors = c.Bool("descriptors")

	ctx, cancel := context.WithTimeout(context.Background(), c.GlobalDuration("timeout"))
	defer cancel()
	r, err := s.run(ctx, service, characteristic)
	if err != nil {
		return err
	}

	w := output(c)
	if c.Bool("json") {
		data, err := r.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	} else {
		fmt.Fprint(w, r.Markdown())
	}

	if c.Bool("save") {
		path, err := r.Save(util.GetReportDir())
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Report written to: %s\n", path)
	}
	return chkErr(r)
}

func descriptors(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	only, err := filterFlag(c, "characteristic", ble.UUIDUnknown)
	if err != nil {
		return err
	}

	s, err := newSession(e.cfg, e.trace)
	if err != nil {
		return err
	}
	defer s.close()
	s.descriptors = true
	s.only = only

	ctx, cancel := context.WithTimeout(context.Background(), c.GlobalDuration("timeout"))
	defer cancel()
	r, err := s.run(ctx, ble.UUIDUnknown, ble.UUIDUnknown)
	if err != nil {
		return err
	}

	w := output(c)
	for _, ch := range r.Characteristics() {
		if !ch.DescriptorsDone {
			continue
		}
		fmt.Fprintf(w, "%s [0x%04X-0x%04X]\n", ch.UUID, uint16(ch.DeclHandle), uint16(ch.LastHandle))
		if ch.DescriptorsErr != nil {
			fmt.Fprintf(w, "  error: %v\n", ch.DescriptorsErr)
		}
		for _, d := range ch.Descriptors {
			fmt.Fprintf(w, "  0x%04X %s\n", uint16(d.Handle), d.UUID)
		}
	}
	return chkErr(r)
}

func dumpDB(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	services, err := e.cfg.Services()
	if err != nil {
		return err
	}
	db, _, err := gatt.BuildAttributeDatabase(services)
	if err != nil {
		return err
	}

	w := output(c)
	fmt.Fprintf(w, "%-6s  %-36s  %-4s  %s\n", "HANDLE", "TYPE", "PERM", "VALUE")
	for _, attr := range db.Attributes(ble.HandleRange{Start: ble.FirstHandle, End: ble.LastHandle}) {
		fmt.Fprintf(w, "0x%04X  %-36s  %-4s  %s\n",
			uint16(attr.Handle), attr.Type, permString(attr.Permissions), hex.EncodeToString(attr.Value))
	}
	return nil
}

func permString(p uint8) string {
	var sb strings.Builder
	if p&gatt.PermReadable != 0 {
		sb.WriteString("r")
	}
	if p&gatt.PermWritable != 0 {
		sb.WriteString("w")
	}
	if sb.Len() == 0 {
		return "-"
	}
	return sb.String()
}

// chkErr turns a discovery that ended with an error into a command error.
func chkErr(r *report.Report) error {
	if r.Err != nil {
		return errors.Wrap(r.Err, "discovery terminated")
	}
	return nil
}
