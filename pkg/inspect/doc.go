// Package inspect serves live readable values over HTTP.
//
//	reg := inspect.NewRegistry()
//	inspect.Register(reg, "count", count)
//	http.ListenAndServe(":7070", inspect.Handler(reg))
//
// GET /readables/count returns {"name":"count","value":3}. Watching
// /readables/count/watch over a websocket streams the same document for the
// current value and then for every change.
package inspect
