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

package proxy

import (
	"errors"
	"net/http"
	"os"

	"github.com/zalando/hostrouter/routing"
)

var errDirectory = errors.New("mapped path is a directory")

func (p *Proxy) staticError(w http.ResponseWriter, d routing.Decision, err error) {
	p.log.Errorf("error while serving file, host: %s, file: %s: %v", d.Host, d.Path, err)
	p.metrics.IncErrorsStatic(d.Host)
	writeStatus(w, http.StatusInternalServerError)
}

// Serves the mapped file. The content type is detected from the file
// extension, or sniffed from the content.
func (p *Proxy) serveFile(w http.ResponseWriter, r *http.Request, d routing.Decision) {
	f, err := os.Open(d.Path)
	if err != nil {
		p.staticError(w, d, err)
		return
	}

	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		p.staticError(w, d, err)
		return
	}

	if fi.IsDir() {
		p.staticError(w, d, errDirectory)
		return
	}

	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}
