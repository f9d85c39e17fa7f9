// Package core defines the JSON response envelope and the HTTP error
// taxonomy shared by all HTTP modules of the billing service.
package core
