// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package xmpp

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/warbler-im/warbler/lib/binhash"
	"github.com/warbler-im/warbler/lib/jid"
	"github.com/warbler-im/warbler/stanza"
)

// MaxTransferSize caps inbound file transfers, both in-band and
// fetched attachments.
const MaxTransferSize = 10 << 20 // 10 MiB

// transferSession is one inbound in-band transfer. Touched only by
// the dispatch goroutine; sessions are keyed by the sender-chosen
// stream ID and independent of one another.
type transferSession struct {
	sid      string
	sender   jid.JID
	filename string
	declared int64
	received int64
	data     []byte
}

// handleTransferOffer answers a stream-initiation offer: accept when
// the in-band method is offered, the size fits, and a stream ID is
// present; otherwise reject with the matching condition.
func (s *Session) handleTransferOffer(iq *stanza.IQ) {
	offer := iq.SI
	if offer.File == nil {
		s.reject(iq, stanza.ErrorTypeModify, stanza.CondBadRequest)
		return
	}
	if !slices.Contains(offer.OfferedStreamMethods(), stanza.NamespaceIBB) {
		s.logger.Warn("transfer offer without in-band method",
			"from", iq.From.String(), "file", offer.File.Name)
		s.reject(iq, stanza.ErrorTypeCancel, stanza.CondFeatureNotImplemented)
		return
	}
	if offer.File.Size > MaxTransferSize {
		s.logger.Warn("rejecting oversized transfer offer",
			"from", iq.From.String(), "file", offer.File.Name, "size", offer.File.Size)
		s.reject(iq, stanza.ErrorTypeModify, stanza.CondNotAcceptable)
		return
	}
	if offer.ID == "" {
		s.reject(iq, stanza.ErrorTypeModify, stanza.CondBadRequest)
		return
	}

	s.transfers[offer.ID] = &transferSession{
		sid:      offer.ID,
		sender:   iq.From,
		filename: offer.File.Name,
		declared: offer.File.Size,
	}
	s.logger.Info("accepted transfer offer",
		"sid", offer.ID, "from", iq.From.String(),
		"file", offer.File.Name, "size", offer.File.Size)

	// Accepting selects the in-band method in the negotiation form.
	accept := iq.Result()
	accept.SI = &stanza.SI{
		Feature: &stanza.FeatureNeg{
			Form: &stanza.Form{
				Type: "submit",
				Fields: []stanza.FormField{
					{Var: "stream-method", Values: []string{stanza.NamespaceIBB}},
				},
			},
		},
	}
	if err := s.send(accept); err != nil {
		s.logger.Error("transfer accept failed", "sid", offer.ID, "error", err)
		delete(s.transfers, offer.ID)
	}
}

// handleTransferOpen acknowledges the bytestream open for a
// negotiated session.
func (s *Session) handleTransferOpen(iq *stanza.IQ) {
	if _, ok := s.transfers[iq.IBBOpen.SID]; !ok {
		s.reject(iq, stanza.ErrorTypeCancel, stanza.CondItemNotFound)
		return
	}
	s.acknowledge(iq)
}

// handleTransferData appends one decoded chunk. Reaching the declared
// size finalizes the transfer and removes the session; a decode
// failure answers bad-request and leaves the session open for a
// retry or a close.
func (s *Session) handleTransferData(iq *stanza.IQ) {
	transfer, ok := s.transfers[iq.IBBData.SID]
	if !ok {
		s.reject(iq, stanza.ErrorTypeCancel, stanza.CondItemNotFound)
		return
	}

	// Chardata may carry the sender's whitespace formatting.
	encoded := strings.Map(dropSpace, iq.IBBData.Payload)
	chunk, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		s.logger.Warn("undecodable transfer chunk",
			"sid", transfer.sid, "seq", iq.IBBData.Seq, "error", err)
		s.reject(iq, stanza.ErrorTypeModify, stanza.CondBadRequest)
		return
	}

	transfer.data = append(transfer.data, chunk...)
	transfer.received += int64(len(chunk))
	s.acknowledge(iq)

	if transfer.received >= transfer.declared {
		s.finalizeTransfer(transfer)
		delete(s.transfers, transfer.sid)
	}
}

// handleTransferClose finalizes whatever was received and always
// acknowledges, known session or not.
func (s *Session) handleTransferClose(iq *stanza.IQ) {
	if transfer, ok := s.transfers[iq.IBBClose.SID]; ok {
		if transfer.received > 0 {
			s.finalizeTransfer(transfer)
		}
		delete(s.transfers, transfer.sid)
	}
	s.acknowledge(iq)
}

// finalizeTransfer writes the accumulated bytes into the download
// area under a sanitized name and forwards the delivery to the host.
func (s *Session) finalizeTransfer(transfer *transferSession) {
	path, err := s.downloadPath(transfer.filename)
	if err != nil {
		s.logger.Error("placing received file failed",
			"sid", transfer.sid, "filename", transfer.filename, "error", err)
		return
	}
	if err := os.WriteFile(path, transfer.data, 0o600); err != nil {
		s.logger.Error("writing received file failed",
			"sid", transfer.sid, "path", path, "error", err)
		return
	}

	digest := binhash.Sum(transfer.data)
	s.metrics.CountTransfer(transfer.received)
	s.logger.Info("transfer complete",
		"sid", transfer.sid, "from", transfer.sender.String(),
		"path", path, "bytes", transfer.received,
		"sha256", binhash.Format(digest))

	s.forward(IncomingMessage{
		Sender:         transfer.sender,
		Text:           "[File received: " + filepath.Base(path) + "]",
		AttachmentPath: path,
	})
}

func (s *Session) acknowledge(iq *stanza.IQ) {
	if err := s.send(iq.Result()); err != nil {
		s.logger.Warn("transfer acknowledgement failed", "id", iq.ID, "error", err)
	}
}

func (s *Session) reject(iq *stanza.IQ, errorType string, condition stanza.Condition) {
	s.metrics.CountHandlerError()
	if err := s.send(iq.ErrorReply(errorType, condition)); err != nil {
		s.logger.Warn("error reply failed", "id", iq.ID, "error", err)
	}
}

func dropSpace(r rune) rune {
	switch r {
	case ' ', '\t', '\r', '\n':
		return -1
	}
	return r
}
