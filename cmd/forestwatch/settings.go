package main

type Settings struct {
	Port          int    `env:"PORT,default=8000"`
	JWTSecret     string `env:"JWT_SECRET,required=true"`
	BasePath      string `env:"BASE_PATH,default=/forestwatch"`
	MongoURI      string `env:"MONGODB_URI,default=mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGODB_DATABASE,default=forestwatch"`
	LogEncoding   string `env:"LOG_ENCODING,default=console"`
}
