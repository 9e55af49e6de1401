package routes

import (
	"fmt"
	"net/http"
)

// PrivacyPolicyHandler serves the privacy notice of the matching service
func PrivacyPolicyHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")

	html := `
	<!DOCTYPE html>
	<html lang="en">
	<head>
		<meta charset="UTF-8">
		<meta name="viewport" content="width=device-width, initial-scale=1.0">
		<title>Privacy Notice</title>
	</head>
	<body>
		<h1>Privacy Notice</h1>
		<p>Your like or pass decisions are encrypted before they are stored and are only ever read inside the matching engine.</p>
		<p>We store a session key and keyed digests of the two participants, never your user id next to a decision.</p>
		<p>The only things revealed are whether a decision was recorded and, once both of you liked each other, that you matched.</p>
	</body>
	</html>
	`
	fmt.Fprint(w, html)
}
