// Package tether binds struct types whose fields are functions to HTTP
// endpoints. Each field declares its route and parameter roles in struct tags;
// Bind installs functions that build the request, send it under a timeout
// governor, and turn the response into the declared result.
//
//	type PostsAPI struct {
//	    _ tether.Namespace `path:"v1"`
//
//	    Get    func(ctx context.Context, id int) (*Post, error)                `http:"GET /posts/{id}" params:"path:id"`
//	    List   func(ctx context.Context, userID int) ([]Post, error)           `http:"GET /posts" params:"query:userId"`
//	    Create func(ctx context.Context, p *Post) *tether.Future[*Post]        `http:"POST /posts" params:"body"`
//	    Delete func(ctx context.Context, id int) error                         `http:"DELETE /posts/{id}" params:"path:id"`
//	    Export func(ctx context.Context) (io.ReadCloser, error)                `http:"GET /posts/export" longrunning:"true"`
//	}
//
//	api, err := tether.New[PostsAPI](tether.NewClient("https://example.com"))
//
// # Parameters
//
// The params tag lists one role per parameter, skipping the context.Context:
// path:name, query:name, header:Name, body, body:name and flat. A parameter
// without an entry is sent as the query pair argN, N being its position in the
// signature. A flat parameter is a struct expanded into one query pair per
// field, named by its schema tags.
//
// # Results
//
// The result type selects how the response is consumed:
//
//	error                      status checked, body discarded
//	*http.Response             returned untouched; the caller closes the body
//	io.ReadCloser, io.Reader   status checked, body returned unread
//	string, []byte             status checked, body returned as is (named
//	                           string and byte types go through the codec)
//	iter.Seq2[T, error]        status checked, text/event-stream decoded per event;
//	                           the body closes when iteration stops, so range over it
//	any other T                status checked, body decoded with the codec
//
// Any of these may be wrapped as *Future[T] (Future[Void] for error) to run
// the call on its own goroutine.
//
// # Timeouts
//
// Every request runs under a governor deadline: WithRequestTimeout on the
// call's context, else the client's WithTimeout, else DefaultTimeout.
// Long-running methods run without one. An elapsed deadline is reported as
// ErrTimeout, a canceled caller context as ErrCanceled.
package tether
