package main

func main() {
	// parse console flags
	InitFlag()
	// start listening for exit signals
	InitSafeExit()
	// load configuration
	InitConf(configPath)
	// set up logging
	InitLog()
	// run the conversion batch (or hand off to the viewer)
	InitTask()
}
