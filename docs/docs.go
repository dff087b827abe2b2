/*
Package classification Evaluation Harness Resolver

The evaluation harness resolver indexes the framework.yml shipped in harness containers
and maps task names to the container and defaults that run them.

Schemes: https, http
BasePath: /
Version: 1.0.0

Consumes:
- application/json
Produces:
- application/json
- application/problem+json

swagger:meta
*/
package docs
