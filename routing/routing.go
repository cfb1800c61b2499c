// Copyright 2015 Zalando SE
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package routing

import (
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	snet "github.com/zalando/hostrouter/net"
)

// Kind tells which branch a request is dispatched to.
type Kind int

const (
	ServeFile Kind = iota
	Proxy
	Error
)

func (k Kind) String() string {
	switch k {
	case ServeFile:
		return "file"
	case Proxy:
		return "proxy"
	default:
		return "error"
	}
}

type decisionError string

func (e decisionError) Error() string { return string(e) }

const (
	ErrInvalidHost   = decisionError("invalid host")
	ErrInvalidScheme = decisionError("invalid forwarded protocol")
	ErrLoopDetected  = decisionError("routing loop detected")
)

// Decision is the result of the dispatch decision for a single
// request.
type Decision struct {
	Kind Kind

	// Host is the patched host that was looked up in the mapping.
	Host string

	// Path is the absolute path of the mapped file, set for ServeFile.
	Path string

	// Target is the upstream URL, set for Proxy. Only the scheme and
	// the host are set.
	Target *url.URL

	// Err is set for Error.
	Err error
}

// Lookup is implemented by the mapping store.
type Lookup interface {
	Lookup(host string) (string, bool)
}

// Options for the router.
type Options struct {
	// Mappings contains the hostname to file associations.
	Mappings Lookup

	// Root is the directory that the mapped paths are relative to.
	// Defaults to the working directory.
	Root string

	// HostPatch is applied to the Host header before the lookup. The
	// port is always removed.
	HostPatch snet.HostPatch

	// InstanceToken identifies this process in the Via header of the
	// proxied requests. When set, requests that already carry it are
	// rejected as loops.
	InstanceToken string
}

// Router decides how the incoming requests are handled.
type Router struct {
	mappings Lookup
	root     string
	patch    snet.HostPatch
	token    string
}

// New creates a router. It fails when the root cannot be resolved to
// an absolute path.
func New(o Options) (*Router, error) {
	if o.Mappings == nil {
		return nil, errors.New("missing mappings")
	}

	root := o.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}

		root = wd
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	patch := o.HostPatch
	patch.RemovePort = true
	return &Router{
		mappings: o.Mappings,
		root:     root,
		patch:    patch,
		token:    o.InstanceToken,
	}, nil
}

// Root returns the absolute directory of the mapped files.
func (r *Router) Root() string {
	return r.root
}

// Decide returns how a request should be handled: by serving a mapped
// file, by proxying it to the host it was addressed to, or by
// rejecting it.
func (r *Router) Decide(req *http.Request) Decision {
	host := r.patch.Apply(req.Host)
	if host != "" {
		if p, ok := r.mappings.Lookup(host); ok {
			return Decision{
				Kind: ServeFile,
				Host: host,
				Path: filepath.Join(r.root, filepath.FromSlash(p)),
			}
		}
	}

	if !snet.ValidHost(req.Host) {
		return Decision{Kind: Error, Host: host, Err: ErrInvalidHost}
	}

	scheme, ok := snet.ForwardedProto(req.Header)
	if !ok {
		return Decision{Kind: Error, Host: host, Err: ErrInvalidScheme}
	}

	if r.token != "" && snet.HasVia(req.Header, r.token) {
		return Decision{Kind: Error, Host: host, Err: ErrLoopDetected}
	}

	return Decision{
		Kind:   Proxy,
		Host:   host,
		Target: &url.URL{Scheme: scheme, Host: req.Host},
	}
}
