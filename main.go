package main

import "github.com/rwool/hitcounter/cmd/service"

func main() {
	service.Run()
}
