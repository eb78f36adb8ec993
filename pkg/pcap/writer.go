// Package pcap writes libpcap capture files, and adapts that format into
// a decoder.FrameSink via FrameWriter.
package pcap

import (
	"encoding/binary"
	"io"
	"time"
)

const (
	magicNumber  uint32 = 0xa1b2c3d4
	versionMajor uint16 = 2
	versionMinor uint16 = 4
	snapLen      uint32 = 65535
)

// DataLinkType is a libpcap LINKTYPE_ value.
type DataLinkType uint32

const (
	// DLTUser0 carries undifferentiated raw serial bytes.
	DLTUser0 DataLinkType = 147
	// DLTRTACSer carries RTAC-Serial-framed records: a 12-byte header
	// (timestamp + event type + reserved) in front of each payload.
	DLTRTACSer DataLinkType = 149
)

// Writer writes packets in libpcap format.
type Writer struct {
	w     io.Writer
	order binary.ByteOrder
}

// NewWriter creates a Writer, writing the 24-byte pcap global header in
// the given byte order and declaring dlt as the capture's link type.
func NewWriter(w io.Writer, order binary.ByteOrder, dlt DataLinkType) (*Writer, error) {
	hdr := struct {
		Magic        uint32
		VersionMajor uint16
		VersionMinor uint16
		ThisZone     int32
		SigFigs      uint32
		SnapLen      uint32
		LinkType     uint32
	}{
		Magic:        magicNumber,
		VersionMajor: versionMajor,
		VersionMinor: versionMinor,
		SnapLen:      snapLen,
		LinkType:     uint32(dlt),
	}
	if err := binary.Write(w, order, &hdr); err != nil {
		return nil, err
	}
	return &Writer{w: w, order: order}, nil
}

// WritePacket writes a single packet with its timestamp and raw data.
func (pw *Writer) WritePacket(ts time.Time, data []byte) error {
	length := uint32(len(data))
	hdr := struct {
		TsSec   uint32
		TsUsec  uint32
		CapLen  uint32
		OrigLen uint32
	}{
		TsSec:   uint32(ts.Unix()),
		TsUsec:  uint32(ts.Nanosecond() / 1000),
		CapLen:  length,
		OrigLen: length,
	}
	if err := binary.Write(pw.w, pw.order, &hdr); err != nil {
		return err
	}
	_, err := pw.w.Write(data)
	return err
}
