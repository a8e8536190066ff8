package handler

import (
	"net/http"

	"github.com/sakif/social-host/internal/config"
)

// rootLinks is the link directory returned by GET /.
var rootLinks = map[string]Link{
	"self":            {Href: "/", Method: http.MethodGet},
	"signup":          {Href: "/signup", Method: http.MethodPost, Description: "Register a new nickname and get vfile token"},
	"upload":          {Href: "/upload", Method: http.MethodPost, Description: "Upload or update your social.org file"},
	"delete":          {Href: "/delete", Method: http.MethodPost, Description: "Delete your hosted file"},
	"redirect":        {Href: "/redirect", Method: http.MethodPost, Description: "Set up permanent redirect to new URL"},
	"remove-redirect": {Href: "/remove-redirect", Method: http.MethodPost, Description: "Remove redirect and resume hosting"},
}

// HandleRoot describes the service and lists its endpoints.
//
// HTTP: GET /
func HandleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Envelope{
		Type:   typeSuccess,
		Errors: []string{},
		Data: map[string]string{
			"name":        "Org Social Host",
			"description": "Host your social.org files online",
			"version":     config.Version,
		},
		Links: rootLinks,
	})
}
