// Copyright 2026 The Warbler Authors
// SPDX-License-Identifier: Apache-2.0

package xmpp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/warbler-im/warbler/lib/netutil"
	"github.com/warbler-im/warbler/stanza"
)

// Slot is a negotiated out-of-band destination: a write URL with any
// service-mandated headers, and the read URL delivered to recipients.
type Slot struct {
	PutURL  string
	GetURL  string
	Headers map[string]string
}

// RequestSlot negotiates an upload slot for a file of the given name
// and size. Both URLs must be present in the service's answer.
func (s *Session) RequestSlot(ctx context.Context, filename string, size int64) (*Slot, error) {
	response, err := s.sendIQ(ctx, &stanza.IQ{
		Type: stanza.IQGet,
		To:   s.uploadService,
		UploadRequest: &stanza.UploadRequest{
			Filename:    filename,
			Size:        size,
			ContentType: "application/octet-stream",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("xmpp: requesting upload slot: %w", err)
	}
	if response.UploadSlot == nil || response.UploadSlot.Put == nil || response.UploadSlot.Get == nil ||
		response.UploadSlot.Put.URL == "" || response.UploadSlot.Get.URL == "" {
		return nil, fmt.Errorf("xmpp: upload slot response missing put or get URL")
	}

	slot := &Slot{
		PutURL:  response.UploadSlot.Put.URL,
		GetURL:  response.UploadSlot.Get.URL,
		Headers: make(map[string]string),
	}
	for _, header := range response.UploadSlot.Put.Headers {
		slot.Headers[header.Name] = header.Value
	}
	return slot, nil
}

// uploadViaSlot transfers the file's bytes to the slot's write URL.
// Any non-2xx response is a failure.
func (s *Session) uploadViaSlot(ctx context.Context, localFile string, slot *Slot) error {
	file, err := os.Open(localFile)
	if err != nil {
		return fmt.Errorf("xmpp: opening %s for upload: %w", localFile, err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("xmpp: stating %s: %w", localFile, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPut, slot.PutURL, file)
	if err != nil {
		return fmt.Errorf("xmpp: building upload request: %w", err)
	}
	request.ContentLength = info.Size()
	request.Header.Set("Content-Type", "application/octet-stream")
	for name, value := range slot.Headers {
		request.Header.Set(name, value)
	}

	response, err := s.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("xmpp: uploading to slot: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("xmpp: upload rejected: %s: %s",
			response.Status, netutil.ErrorBody(response.Body))
	}
	return nil
}

// SendFile delivers a file to a contact or room: negotiate a slot,
// upload the bytes, and send a message carrying the read URL. When
// slot negotiation or the upload fails, degrade to a textual
// placeholder message naming the file; a true in-band send path is
// not implemented. If the placeholder also fails, the returned error
// carries both causes.
func (s *Session) SendFile(ctx context.Context, to string, localFile, text string, isGroup bool) error {
	filename := filepath.Base(localFile)

	uploadErr := s.sendFileViaSlot(ctx, to, localFile, filename, text, isGroup)
	if uploadErr == nil {
		return nil
	}
	s.metrics.CountUploadFallback()
	s.logger.Warn("upload path failed, degrading to text notification",
		"file", filename, "error", uploadErr)

	placeholder := "[File: " + filename + "]"
	if text != "" {
		placeholder += " " + text
	}
	var fallbackErr error
	if isGroup {
		fallbackErr = s.SendGroupchat(to, placeholder)
	} else {
		target, err := s.parseRecipient(to)
		if err != nil {
			fallbackErr = err
		} else {
			fallbackErr = s.SendChat(target, placeholder)
		}
	}
	if fallbackErr != nil {
		return fmt.Errorf("xmpp: sending file %s failed on both paths: %w",
			filename, errors.Join(uploadErr, fallbackErr))
	}
	return nil
}

func (s *Session) sendFileViaSlot(ctx context.Context, to, localFile, filename, text string, isGroup bool) error {
	info, err := os.Stat(localFile)
	if err != nil {
		return fmt.Errorf("xmpp: stating %s: %w", localFile, err)
	}

	slot, err := s.RequestSlot(ctx, filename, info.Size())
	if err != nil {
		return err
	}
	if err := s.uploadViaSlot(ctx, localFile, slot); err != nil {
		return err
	}

	message := &stanza.Message{
		Body: text,
		OOB:  &stanza.OOB{URL: slot.GetURL, Desc: filename},
	}
	if isGroup {
		roomJID, err := s.resolveRoom(to)
		if err != nil {
			return err
		}
		message.To = roomJID
		message.Type = stanza.MessageGroupchat
	} else {
		target, err := s.parseRecipient(to)
		if err != nil {
			return err
		}
		message.To = target
		message.Type = stanza.MessageChat
	}
	if err := s.send(message); err != nil {
		return fmt.Errorf("xmpp: sending file message: %w", err)
	}
	return nil
}
