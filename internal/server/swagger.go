package server

//go:generate swag init -g internal/server/server.go -o docs/swagger

// @title SEO Expert API
// @version 0.1
// @description Interactive documentation for the SEO Expert audit API surface.
// @contact.name SEO Expert Maintainers
// @contact.url https://github.com/amine-CS96/seo-expert
// @BasePath /
