/*
Package clients implements the HTTP transport to network nodes.

NodeClient posts handshake and encrypted operation requests with the SDK headers
and returns the decoded node answers:

  - Handshake decodes the node keys, accepting bodies wrapped in "data"
  - PostEncrypted returns the node's EncryptedBatch; failed requests whose body is
    an envelope are decrypted so the node's error text reaches the caller

MockNodeClient is a testify mock of the same methods for unit tests.
*/
package clients
