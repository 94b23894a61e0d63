package ncp

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/ezhangle/thci/ncp/gpio"
)

// Bootloader handshake bytes (spec §4.9 "firmware update handoff").
const (
	bootPromptSync  = '\n'
	bootUploadStart = 'x'
	bootXMODEMStart = 'C'
)

// XMODEM protocol bytes.
const (
	xmodemSOH = 0x01
	xmodemEOT = 0x04
	xmodemACK = 0x06
	xmodemNAK = 0x15
	xmodemCAN = 0x18
	xmodemPad = 0x1A

	xmodemBlockSize = 128
	xmodemMaxRetry  = 10
)

// UpdateFirmware stops the framed read loop, pulses reset into bootloader
// mode, speaks the prompt/upload/XMODEM handshake, transfers image, then
// pulses reset back into application mode and restarts the read loop
// (spec §4.9). version is read as a terminator-delimited string from the start
// of image; if it matches the NCP's currently running version (queried
// over the normal console before the handoff), the update is skipped
// entirely.
func (d *Driver) UpdateFirmware(ctx context.Context, image io.Reader) error {
	running, err := d.NCPVersion(ctx)
	if err != nil {
		return wrapf(KindFailed, err, "firmware update: read running version")
	}

	br := bufio.NewReader(image)
	incoming, err := br.ReadString(0)
	if err != nil && err != io.EOF {
		return wrapf(KindParse, err, "firmware update: read image version")
	}
	incoming = trimTerminator(incoming)

	if incoming == running {
		d.trace.Error("firmware update", wrapf(KindFailed, nil, "image version %q matches running version, skipping", running))
		return nil
	}

	// Stop the HDLC read loop so raw bootloader bytes are not mistaken for
	// framed Spinel traffic, but leave the transport and receive FIFO
	// running: the handshake below reads bytes directly off the FIFO.
	d.stopReadLoop()

	gpio.PulseReset(d.hook, true, d.cfg.ResetHoldTime, d.cfg.ResetSettleDelay)

	if err := d.bootloaderHandshake(); err != nil {
		gpio.PulseReset(d.hook, false, d.cfg.ResetHoldTime, d.cfg.ResetSettleDelay)
		d.startReadLoop()
		return wrapf(KindFailed, err, "firmware update: bootloader handshake")
	}

	if err := d.xmodemSend(br); err != nil {
		gpio.PulseReset(d.hook, false, d.cfg.ResetHoldTime, d.cfg.ResetSettleDelay)
		d.startReadLoop()
		return wrapf(KindFailed, err, "firmware update: transfer")
	}

	gpio.PulseReset(d.hook, false, d.cfg.ResetHoldTime, d.cfg.ResetSettleDelay)
	d.startReadLoop()
	return nil
}

func trimTerminator(s string) string {
	for i, c := range s {
		if c == 0 || c == '\n' || c == '\r' {
			return s[:i]
		}
	}
	return s
}

// bootloaderHandshake sends a newline to sync the bootloader's prompt,
// then 'x' to initiate upload, then waits for the bootloader's readiness
// byte ('C', requesting XMODEM checksum mode) before returning.
func (d *Driver) bootloaderHandshake() error {
	d.putBootByte(bootPromptSync)
	time.Sleep(50 * time.Millisecond)
	d.putBootByte(bootUploadStart)

	b, ok := d.waitBootByte(d.cfg.RequestTimeout)
	if !ok || b != bootXMODEMStart {
		return wrapf(KindNoFrameReceived, nil, "bootloader did not request XMODEM start")
	}
	return nil
}

// putBootByte writes a single raw byte to the console during the
// bootloader handshake, where no HDLC framing applies, via the same
// TxReady-gated adapter the framed send path uses.
func (d *Driver) putBootByte(b byte) bool {
	return d.adapter.TxPut(b, d.cfg.RequestTimeout, nil)
}

// xmodemSend transfers the remainder of image in 128-byte checksum-mode
// XMODEM blocks, retrying each block up to xmodemMaxRetry times on NAK.
func (d *Driver) xmodemSend(image io.Reader) error {
	buf := make([]byte, xmodemBlockSize)
	var blockNum byte = 1

	for {
		n, readErr := io.ReadFull(image, buf)
		if n == 0 {
			break
		}
		if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
			return readErr
		}
		for i := n; i < xmodemBlockSize; i++ {
			buf[i] = xmodemPad
		}

		if err := d.sendXMODEMBlock(blockNum, buf); err != nil {
			return err
		}
		blockNum++

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
	}

	d.putBootByte(xmodemEOT)
	ack, ok := d.waitBootByte(d.cfg.RequestTimeout)
	if !ok || ack != xmodemACK {
		return wrapf(KindNoFrameReceived, nil, "no ACK for EOT")
	}
	return nil
}

func (d *Driver) sendXMODEMBlock(num byte, data []byte) error {
	var checksum byte
	for _, b := range data {
		checksum += b
	}

	for attempt := 0; attempt < xmodemMaxRetry; attempt++ {
		d.putBootByte(xmodemSOH)
		d.putBootByte(num)
		d.putBootByte(^num)
		for _, b := range data {
			d.putBootByte(b)
		}
		d.putBootByte(checksum)

		reply, ok := d.waitBootByte(d.cfg.RequestTimeout)
		if ok && reply == xmodemACK {
			return nil
		}
		if ok && reply == xmodemCAN {
			return wrapf(KindFailed, nil, "bootloader cancelled transfer")
		}
	}
	return wrapf(KindNoFrameReceived, nil, "block %d not acknowledged after %d attempts", num, xmodemMaxRetry)
}

func (d *Driver) waitBootByte(timeout time.Duration) (byte, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if b, ok := d.fifo.Get(); ok {
			return b, true
		}
		time.Sleep(time.Millisecond)
	}
	return 0, false
}
