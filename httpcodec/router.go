// Copyright 2019 Jigsaw Operations LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httpcodec

// ErrNoRoute is returned when no handler in a Router claims a request.
type errNoRoute struct{}

func (errNoRoute) Error() string { return "httpcodec: no handler matched the request" }

var ErrNoRoute error = errNoRoute{}

// Handler serves one request on sc. A handler that doesn't apply to sc's
// request should return ErrNoRoute so the Router can try the next one;
// any other error is treated as a server failure (the caller should call
// sc.CompleteErr and close).
type Handler func(sc *ServerConnection) error

// Router tries each Handler in order, stopping at the first one that
// doesn't return ErrNoRoute.
type Router []Handler

// Serve implements Handler: it is itself composable, so a Router can be
// nested as one stage of a larger Router.
func (rt Router) Serve(sc *ServerConnection) error {
	for _, h := range rt {
		err := h(sc)
		if err == nil {
			return nil
		}
		if err != ErrNoRoute {
			return err
		}
	}
	return ErrNoRoute
}

// Route restricts h to requests whose method and path match exactly,
// deferring everything else to the next handler in the chain.
func Route(method Method, path string, h Handler) Handler {
	return func(sc *ServerConnection) error {
		if sc.Request.Method != method || sc.Request.Path != path {
			return ErrNoRoute
		}
		return h(sc)
	}
}

// NotFound responds 404 with an empty body. Server falls back to it when a
// connection's handler returns ErrNoRoute, and a Router can end with it
// explicitly to claim every leftover request.
func NotFound(sc *ServerConnection) error {
	body, err := sc.InitiateResponse(ResponseHeaders{
		Version: sc.Request.Version,
		Code:    404,
		Reason:  "Not Found",
	}, BodyTypeContentLen, 0)
	if err != nil {
		return err
	}
	return body.Finish()
}
