/*
Package streaming writes finished results to HTTP clients without letting a
slow or vanished client hold a job's workspace open.

# Writer

Writer wraps any io.Writer (normally the http.ResponseWriter) and splits
writes into chunks. Each chunk must complete within WriteTimeout, and the
gap between successful chunks must stay under IdleTimeout. The writer is
flushed after every chunk when the destination supports it, and OnProgress
receives the running byte count so callers can map it onto job progress.

# SendFile

SendFile opens a result, sets Content-Type, Content-Length and an
attachment Content-Disposition, then streams it through a Writer:

	sent, err := streaming.SendFile(r.Context(), w, streaming.Attachment{
		Path:        ws.OutputPath(),
		Filename:    "output_" + id + ".webm",
		ContentType: "video/webm",
	}, streaming.DefaultConfig())
	if err != nil && !sent {
		http.Error(w, "Processing failed", http.StatusInternalServerError)
	}

# Errors

Failures are reported with sentinel errors that work with errors.Is:

  - ErrClientGone: the request context was canceled mid-stream
  - ErrWriteTimeout: a chunk write or the idle gap took too long
  - ErrStreamCanceled: Close was called or the context ended for another reason
  - ErrEmptyResult: the result file had no content; nothing was sent

Once headers are written the status cannot change, so callers should only
log errors reported with headersSent=true.
*/
package streaming
