// Package storage implements the storage manager: it consumes
// "…/file/.../create" requests from the shared storage queue, decodes
// a base64 file payload, classifies it by extension into an
// images/pdfs/others subfolder, and writes it through a Backend
// (local disk, FTP, or SFTP) resolved from the owning device's model.
// A 5 s heartbeat timer independently republishes liveness for every
// enabled device.
package storage
