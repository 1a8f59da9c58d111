package main

import (
	"context"
	"net/http"

	"github.com/ridge/travertine/mpfd"
	"github.com/ridge/travertine/request"
	"github.com/ridge/travertine/thttp"
	"github.com/ridge/travertine/tws"
)

type echoResult struct {
	Method      string            `json:"method"`
	URL         string            `json:"url"`
	Origin      string            `json:"origin,omitempty"`
	Params      map[string]string `json:"params"`
	Cookies     map[string]string `json:"cookies"`
	Session     string            `json:"session,omitempty"`
	Username    string            `json:"username,omitempty"`
	PeerSubject string            `json:"peerSubject,omitempty"`
	Compression string            `json:"compression"`
	JSON        string            `json:"json,omitempty"`
}

func echo(w *thttp.ResponseWriter, r *request.Request) {
	res := echoResult{
		Method:      r.Method().String(),
		URL:         r.URL(),
		Origin:      r.Origin(),
		Params:      map[string]string{},
		Cookies:     map[string]string{},
		Session:     r.SessionID(),
		Username:    r.Username(),
		Compression: r.Compression().String(),
		JSON:        r.JSON(),
	}
	for _, name := range r.ParamNames() {
		res.Params[name], _ = r.Param(name)
	}
	for _, name := range r.CookieNames() {
		res.Cookies[name], _ = r.Cookie(name)
	}
	res.PeerSubject, _ = r.PeerSubject()
	w.JSON(res, http.StatusOK)
}

func sessionAttributes(w *thttp.ResponseWriter, r *request.Request) {
	switch r.Method() {
	case request.MethodPost:
		for _, name := range r.ParamNames() {
			value, _ := r.Param(name)
			if err := r.SetSessionAttribute(name, value); err != nil {
				w.JSON(map[string]string{"error": err.Error()}, http.StatusInternalServerError)
				return
			}
		}
	case request.MethodDelete:
		r.RemoveSession()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	attrs := map[string]any{}
	for _, name := range r.SessionAttributeNames() {
		if v, ok := r.SessionAttribute(name); ok {
			attrs[name] = v
		}
	}
	w.JSON(attrs, http.StatusOK)
}

type uploadedField struct {
	Kind        string `json:"kind"`
	Text        string `json:"text,omitempty"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size"`
}

func upload(w *thttp.ResponseWriter, r *request.Request) {
	if !r.IsMultipart() {
		w.JSON(map[string]string{"error": "multipart/form-data body expected"}, http.StatusBadRequest)
		return
	}
	fields, err := r.Multipart().Fields()
	if err != nil {
		w.JSON(map[string]string{"error": err.Error()}, http.StatusBadRequest)
		return
	}
	res := map[string]uploadedField{}
	for name, f := range fields {
		uf := uploadedField{Kind: f.Kind().String()}
		switch f := f.(type) {
		case *mpfd.TextField:
			uf.Text = f.Text()
			uf.Size = int64(len(uf.Text))
		case *mpfd.MemoryFile:
			uf.Filename, uf.ContentType, uf.Size = f.Filename(), f.ContentType(), int64(f.Size())
		case *mpfd.DiskFile:
			uf.Filename, uf.ContentType, uf.Size = f.Filename(), f.ContentType(), f.Size()
		}
		res[name] = uf
	}
	w.JSON(res, http.StatusOK)
}

func wsEcho(ctx context.Context, incoming <-chan tws.Message, outgoing chan<- tws.Message) error {
	for {
		select {
		case msg, ok := <-incoming:
			if !ok {
				return nil
			}
			select {
			case outgoing <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
