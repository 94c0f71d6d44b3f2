package handlers

import (
	"net/http"

	"github.com/Urzzard/Operador-IA/pkg/core"
	"github.com/Urzzard/Operador-IA/pkg/gateway/apierror"
	"github.com/Urzzard/Operador-IA/pkg/gateway/mw"
)

type NotFoundHandler struct{}

func (h NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	apierror.Write(w, reqID, &core.Error{
		Type:    core.ErrNotFound,
		Message: "not found",
	}, http.StatusNotFound)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	ce, status := apierror.FromError(err)
	apierror.Write(w, reqID, ce, status)
}

func writeCoreError(w http.ResponseWriter, r *http.Request, ce *core.Error, status int) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	apierror.Write(w, reqID, ce, status)
}
