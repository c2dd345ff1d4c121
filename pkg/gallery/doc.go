// Package gallery implements an asynchronous image ingestion pipeline.
//
// A client asks the Service for an upload intent, which creates a PENDING
// ImageRecord and returns a short-lived presigned write location. The binary is
// written straight to object storage; the storage layer then reports the write
// and OnObjectWritten derives a thumbnail and labels and commits them with a
// conditional PENDING to READY update. ListReady only ever returns READY
// records that carry a thumbnail.
//
// Notifications are delivered at least once and possibly concurrently, so
// OnObjectWritten is idempotent: the metadata store's conditional update is the
// only coordination point and losing that race is reported as success.
//
// Basic usage:
//
//	svc, err := gallery.New(
//		gallery.WithMetadataStore(memoryrepo.New()),
//		gallery.WithObjectStore(memorystorage.New(memorystorage.Config{
//			Signer:       signer,
//			UploadBase:   baseURL + "/upload",
//			DownloadBase: baseURL + "/files",
//		})),
//		gallery.WithClassifier(classify.NewStatic("photo")),
//		gallery.WithThumbnailer(thumbnail.New()),
//	)
//	intent, err := svc.RequestUpload(ctx, gallery.RequestUploadInput{ContentType: "image/png"})
//	// client PUTs the binary to intent.UploadURL
//	err = svc.OnObjectWritten(ctx, intent.ObjectKey)
//	items, err := svc.ListReady(ctx, gallery.ListReadyRequest{})
package gallery
