// Package api serves the engine over HTTP.
//
// Routes:
//
//	GET  /users/{userID}/notifications
//	GET  /users/{userID}/notifications/unread-count
//	POST /users/{userID}/notifications/{notificationID}/read
//	POST /users/{userID}/notifications/read-all
//	GET  /users/{userID}/threshold
//	PUT  /users/{userID}/threshold
//	POST /listings/{listingID}/created
//	GET  /listings/{listingID}/matches
//	GET  /healthz
//	GET  /metrics
//
// Errors are JSON objects of the form {"error": "..."}. Invalid arguments
// map to 400, missing records to 404 and everything else to 500.
package api
