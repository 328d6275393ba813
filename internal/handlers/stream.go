package handlers

import "net/http"

// StreamHandler serves the MJPEG live view of the camera named by the "camera" query parameter.
func StreamHandler(ctrl SessionController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stream, ok := ctrl.Stream(r.URL.Query().Get("camera"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		stream.ServeHTTP(w, r)
	}
}
