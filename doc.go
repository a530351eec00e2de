// Package ftpx implements the client side of the ftpx file-transfer
// protocol: an FTP-like, JSON-enveloped protocol offering authenticated,
// directory-scoped remote file management over a long-lived control
// connection, with file bytes carried on ephemeral per-transfer data
// connections and verified against a SHA-256 digest.
//
// Basic usage:
//
//	client, err := ftpx.Dial("localhost:8021")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Quit()
//
//	if err := client.Login("alice", "secret123"); err != nil {
//	    log.Fatal(err)
//	}
//
//	listing, _ := client.List("")
//	fmt.Println(listing)
//
//	err = client.Download("notes.txt", ".")
//
// The server lives in the server subpackage; the shared wire protocol in
// proto; the data channel in xfer.
package ftpx
