/*
Package api defines the wire types exchanged with network nodes.

Requests are typed per operation (DecryptRequest, PKPSignRequest, ExecuteJsRequest,
SignSessionKeyRequest) and are sent inside an E2EE envelope together with the epoch
(EncryptedRequest). Nodes answer with an EncryptedBatch whose values decrypt to a
NodeResponse carrying the operation specific data.

# Response Shapes

Nodes are not consistent about how they wrap a successful answer. ParseEncryptedBatch
accepts, in order:

  - a batch: {"success": true, "values": [envelope, ...]}
  - a batch under "data"
  - a single envelope under "data"
  - a bare envelope

Anything else is reported as a network error carrying the raw body.

# Headers

Every request carries SDKVersionHeader, SDKTypeHeader and RequestIDHeader. The
request id is shared by all node requests of one operation so node logs can be
correlated.

The clients subpackage implements the HTTP transport.
*/
package api
