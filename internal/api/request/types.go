package request

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/rpslsgame/internal/model"
)

// GameAddress reads and validates the {address} path variable
func GameAddress(r *http.Request) (model.Address, error) {
	addr, err := model.ParseAddress(mux.Vars(r)["address"])
	if err != nil || addr.IsZero() {
		return "", model.ErrInvalidAddress
	}
	return addr, nil
}
