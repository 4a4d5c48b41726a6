// Package environment carries the deployment environment (development,
// staging, production) through request contexts and into log records.
//
//	env := environment.Parse(os.Getenv("APP_ENV"))
//	r.Use(environment.Middleware(env))
//
//	log := logger.New(logger.WithContextExtractors(environment.LoggerExtractor()))
package environment
