package gateway

import (
	"net/http"
	"os"

	"github.com/paulgrammer/local-gateway/contenttype"
)

const indexPath = "/index.html"

// handleFile serves a file from the server root. The path must be on the
// readable allow-list and the client must accept its content type.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	reqPath := r.URL.Path
	if reqPath == "/" {
		reqPath = indexPath
	}

	paths := s.settings.Paths
	if !paths.CanRead(reqPath) {
		writeText(w, http.StatusNotFound, "Not Found")
		return
	}

	name, err := paths.Resolve(reqPath)
	if err != nil {
		writeText(w, http.StatusNotFound, "Not Found")
		return
	}

	f, err := os.Open(name)
	if err != nil {
		s.logger.Warn("Unable to open file", "path", reqPath, "error", err)
		writeText(w, http.StatusNotFound, "Not Found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeText(w, http.StatusNotFound, "Not Found")
		return
	}

	ct := contenttype.FromExtension(reqPath)
	if err := s.settings.Headers.Apply(w.Header(), ct, r.Header); err != nil {
		w.WriteHeader(http.StatusNotAcceptable)
		return
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
